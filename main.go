package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/wocat/qcat-engine/clean"
	"github.com/wocat/qcat-engine/config"
	"github.com/wocat/qcat-engine/configuration"
	"github.com/wocat/qcat-engine/database"
	"github.com/wocat/qcat-engine/filter"
	"github.com/wocat/qcat-engine/i18n"
	"github.com/wocat/qcat-engine/log"
	"github.com/wocat/qcat-engine/registry"
	"github.com/wocat/qcat-engine/search"
	"github.com/wocat/qcat-engine/summary"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	store := database.NewStore(db)
	builder := &configuration.Builder{
		Registry:     registry.New(store),
		Source:       store,
		Translations: i18n.NewStore("en"),
	}
	cache := configuration.NewCache(builder.Build)

	tree, err := cache.Get(cfg.Code, cfg.Locale)
	if err != nil {
		log.Fatal("main.configuration.build:", err)
	}
	log.Infof("Built configuration %s (edition %s) for locale %s", tree.Code, tree.Edition, tree.Locale)

	if cfg.Document != "" {
		runClean(cfg, tree)
	}
	if cfg.Query != "" {
		runQuery(cfg, tree)
	}
}

func runClean(cfg config.Config, tree *configuration.Tree) {
	data, err := os.ReadFile(cfg.Document)
	if err != nil {
		log.Fatal("main.doc.read:", err)
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Fatal("main.doc.parse:", err)
	}

	cleaned, errs := clean.Clean(raw, tree, clean.Options{NoLimitCheck: cfg.NoLimit})
	for _, msg := range errs {
		log.Warn("clean:", msg)
	}
	printJSON(cleaned)

	if cfg.SummaryType != "" {
		printJSON(summary.Summarize(tree, cfg.SummaryType, cleaned, nil))
	}
}

func runQuery(cfg config.Config, tree *configuration.Tree) {
	parser := &filter.Parser{Tree: tree}
	filters := parser.Parse(cfg.Query)

	query, err := search.BuildQuery(filters, "", []string{cfg.Code}, 10, 0, true)
	if err != nil {
		log.Fatal("main.query.build:", err)
	}
	printJSON(query)
}

func printJSON(value any) {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		log.Fatal("main.print:", err)
	}
	fmt.Println(string(out))
}
