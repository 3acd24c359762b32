package config

import (
	"errors"
	"flag"
)

type Config struct {
	DBUrl       string
	Code        string
	Locale      string
	Document    string
	Query       string
	SummaryType string
	NoLimit     bool
	Debug       bool
}

func ParseFlags() (cfg Config, err error) {
	flag.StringVar(&cfg.DBUrl, "db-url", "qcat.sqlite", "path to SQLite3 DB file (default qcat.sqlite)")
	flag.StringVar(&cfg.Code, "code", "", "configuration code to build")
	flag.StringVar(&cfg.Locale, "locale", "en", "locale the tree is built for (default en)")
	flag.StringVar(&cfg.Document, "doc", "", "path to an answer document JSON file to validate")
	flag.StringVar(&cfg.Query, "query", "", "filter query string to translate into a search query")
	flag.StringVar(&cfg.SummaryType, "summary", "", "summary type to derive from the cleaned document")
	flag.BoolVar(&cfg.NoLimit, "no-limit-check", false, "skip max_length checks on translated text")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	if cfg.Code == "" {
		err = errors.New("missing parameter -code")
	}

	return
}
