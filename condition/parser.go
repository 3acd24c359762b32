package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp // comparison operator
	tokLparen
	tokRparen
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLparen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRparen, ")"})
			i++
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case strings.ContainsRune("=!<>&|", r):
			j := i
			for j < len(runes) && strings.ContainsRune("=!<>&|", runes[j]) {
				j++
			}
			op := string(runes[i:j])
			switch op {
			case "==", "!=", "<", "<=", ">", ">=":
				toks = append(toks, token{tokOp, op})
			case "&&":
				toks = append(toks, token{tokIdent, "and"})
			case "||":
				toks = append(toks, token{tokIdent, "or"})
			case "!":
				toks = append(toks, token{tokIdent, "not"})
			default:
				return nil, fmt.Errorf("invalid operator %q", op)
			}
			i = j
		case unicode.IsDigit(r) || r == '-' || r == '.':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			text := string(runes[i:j])
			if _, err := strconv.ParseFloat(text, 64); err != nil {
				return nil, fmt.Errorf("invalid number %q", text)
			}
			toks = append(toks, token{tokNumber, text})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("invalid character %q", r)
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) eof() bool   { return p.pos >= len(p.toks) }
func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) accept(kind tokenKind, text string) bool {
	if p.eof() || p.toks[p.pos].kind != kind || p.toks[p.pos].text != text {
		return false
	}
	p.pos++
	return true
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokIdent, "or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokIdent, "and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.accept(tokIdent, "not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	if p.eof() {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	if p.accept(tokLparen, "(") {
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(tokRparen, ")") {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil
	}

	// Leading comparison operator: the bound value is the implied left operand.
	if p.peek().kind == tokOp {
		op := p.next().text
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: op, left: operand{kind: opValue}, right: right}, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if !p.eof() && p.peek().kind == tokOp {
		op := p.next().text
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return cmpNode{op: op, left: left, right: right}, nil
	}

	// A lone operand is only boolean if it is a boolean literal or a
	// truthiness test of the bound value.
	switch left.kind {
	case opValue, opLen:
		return truthy{of: left}, nil
	case opLit:
		if b, ok := left.literal.(bool); ok {
			return boolLit(b), nil
		}
	}
	return nil, fmt.Errorf("bare literal is not a boolean expression")
}

func (p *parser) parseOperand() (operand, error) {
	if p.eof() {
		return operand{}, fmt.Errorf("missing operand")
	}
	t := p.next()
	switch t.kind {
	case tokString:
		return operand{kind: opLit, literal: t.text}, nil
	case tokNumber:
		n, _ := strconv.ParseFloat(t.text, 64)
		return operand{kind: opLit, literal: n}, nil
	case tokIdent:
		switch t.text {
		case "True", "true":
			return operand{kind: opLit, literal: true}, nil
		case "False", "false":
			return operand{kind: opLit, literal: false}, nil
		case "value":
			return operand{kind: opValue}, nil
		case "len", "bool":
			if !p.accept(tokLparen, "(") {
				return operand{}, fmt.Errorf("expected ( after %s", t.text)
			}
			if !p.accept(tokIdent, "value") {
				return operand{}, fmt.Errorf("%s() only accepts the bound value", t.text)
			}
			if !p.accept(tokRparen, ")") {
				return operand{}, fmt.Errorf("missing ) after %s(value", t.text)
			}
			if t.text == "len" {
				return operand{kind: opLen}, nil
			}
			return operand{kind: opValue}, nil
		}
		return operand{}, fmt.Errorf("unknown identifier %q", t.text)
	}
	return operand{}, fmt.Errorf("unexpected %q", t.text)
}
