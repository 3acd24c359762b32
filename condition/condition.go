// Package condition implements the predicate mini-language used by question
// conditions and questiongroup conditions. A predicate is a boolean
// expression over a single bound variable ("value"), restricted to
// comparison and boolean operators. Arbitrary code is never evaluated.
//
// Supported forms:
//
//	True, False
//	>0, >=1, <10, !='', =='value_1'       (left operand implied)
//	value > 0, len(value) > 2, bool(value)
//	>0 and <10, not value, (>0 or =='x')
package condition

import (
	"fmt"
	"strconv"
)

// Predicate is a compiled boolean expression over one bound value.
type Predicate struct {
	src  string
	expr node
}

// Parse compiles src into a Predicate. Expressions that cannot yield a
// boolean are rejected.
func Parse(src string) (*Predicate, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	if !p.eof() {
		return nil, fmt.Errorf("condition %q: unexpected %q", src, p.peek().text)
	}
	if !expr.boolean() {
		return nil, fmt.Errorf("condition %q: does not evaluate to a boolean", src)
	}
	return &Predicate{src: src, expr: expr}, nil
}

// MustParse is Parse for static expressions known to be valid.
func MustParse(src string) *Predicate {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Predicate) String() string { return p.src }

// Eval evaluates the predicate against the bound value. Type mismatches
// (e.g. a relational comparison against a non-number) report an error and
// callers treat the predicate as unsatisfied.
func (p *Predicate) Eval(value any) (bool, error) {
	return p.expr.eval(value)
}

type node interface {
	eval(value any) (bool, error)
	boolean() bool
}

type boolLit bool

func (b boolLit) eval(any) (bool, error) { return bool(b), nil }
func (b boolLit) boolean() bool          { return true }

type truthy struct{ of operand }

func (t truthy) eval(value any) (bool, error) { return isTruthy(t.of.resolve(value)), nil }
func (t truthy) boolean() bool                { return true }

type notNode struct{ inner node }

func (n notNode) eval(value any) (bool, error) {
	ok, err := n.inner.eval(value)
	return !ok, err
}
func (n notNode) boolean() bool { return true }

type binNode struct {
	op          string
	left, right node
}

func (n binNode) eval(value any) (bool, error) {
	left, err := n.left.eval(value)
	if err != nil {
		return false, err
	}
	if n.op == "and" && !left {
		return false, nil
	}
	if n.op == "or" && left {
		return true, nil
	}
	return n.right.eval(value)
}
func (n binNode) boolean() bool { return true }

type operand struct {
	kind    int // opValue, opLen, opLit
	literal any
}

const (
	opValue = iota
	opLen
	opLit
)

func (o operand) resolve(value any) any {
	switch o.kind {
	case opValue:
		return value
	case opLen:
		switch v := value.(type) {
		case string:
			return float64(len(v))
		case []any:
			return float64(len(v))
		case map[string]any:
			return float64(len(v))
		}
		return float64(0)
	default:
		return o.literal
	}
}

type cmpNode struct {
	op          string
	left, right operand
}

func (n cmpNode) boolean() bool { return true }

func (n cmpNode) eval(value any) (bool, error) {
	left := n.left.resolve(value)
	right := n.right.resolve(value)

	lnum, lok := toNumber(left)
	rnum, rok := toNumber(right)
	if lok && rok {
		switch n.op {
		case "==":
			return lnum == rnum, nil
		case "!=":
			return lnum != rnum, nil
		case "<":
			return lnum < rnum, nil
		case "<=":
			return lnum <= rnum, nil
		case ">":
			return lnum > rnum, nil
		case ">=":
			return lnum >= rnum, nil
		}
	}

	switch n.op {
	case "==":
		return stringForm(left) == stringForm(right), nil
	case "!=":
		return stringForm(left) != stringForm(right), nil
	}
	return false, fmt.Errorf("cannot compare %T with %T using %s", left, right, n.op)
}

func isTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

func stringForm(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}
