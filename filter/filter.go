// Copyright © 2024 The ELPS authors

/*
Package filter parses predicates that select functions by their metrics.

	expr   := <cond> (<sep> <cond>)*
	cond   := <metric> <op> <value>
	metric := loads | stores | branches | calls | flagged | lines | import
	op     := '>=' | '<=' | '==' | '!=' | '>' | '<' | '='
	value  := /[0-9]+/ | true | false
	sep    := ',' | '&&' | 'and'

All conditions must hold for a function to match.
*/
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/luthersystems/watsum/metrics"
	parsec "github.com/prataprc/goparsec"
)

// Metrics lists the metric names a condition may test.
var Metrics = []string{"loads", "stores", "branches", "calls", "flagged", "lines", "import"}

// Value returns the named metric of m.  Booleans are 0 or 1.
func Value(m *metrics.Metrics, name string) (int, bool) {
	switch name {
	case "loads":
		return m.Loads, true
	case "stores":
		return m.Stores, true
	case "branches":
		return m.Branches, true
	case "calls":
		return m.Calls, true
	case "flagged":
		return len(m.FlaggedCalls), true
	case "lines":
		return m.BodyLines, true
	case "import":
		if m.IsImport {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Cond compares one metric against a constant.
type Cond struct {
	Metric string
	Op     string
	Value  int
}

func (c Cond) String() string {
	return fmt.Sprintf("%s%s%d", c.Metric, c.Op, c.Value)
}

// Match reports whether m satisfies the condition.
func (c Cond) Match(m *metrics.Metrics) bool {
	v, ok := Value(m, c.Metric)
	if !ok {
		return false
	}
	switch c.Op {
	case ">":
		return v > c.Value
	case ">=":
		return v >= c.Value
	case "<":
		return v < c.Value
	case "<=":
		return v <= c.Value
	case "==", "=":
		return v == c.Value
	case "!=":
		return v != c.Value
	}
	return false
}

// Expr is a conjunction of conditions.  A nil Expr matches everything.
type Expr struct {
	Conds []Cond
}

// Match reports whether m satisfies every condition.
func (e *Expr) Match(m *metrics.Metrics) bool {
	if e == nil {
		return true
	}
	for _, c := range e.Conds {
		if !c.Match(m) {
			return false
		}
	}
	return true
}

// String returns the canonical form of e, conditions joined by ", ".
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	s := make([]string, len(e.Conds))
	for i, c := range e.Conds {
		s[i] = c.String()
	}
	return strings.Join(s, ", ")
}

// Parse parses text.  Blank text yields a nil Expr and no error.
func Parse(text string) (*Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	s := parsec.NewScanner([]byte(text))
	root, s := newParser()(s)
	_, s = s.SkipWS()
	if root == nil || !s.Endof() {
		b, _ := s.Match(`.{1,16}`)
		if len(b) > 15 {
			b = append(b[:15:15], []byte("...")...)
		}
		return nil, fmt.Errorf("filter: offset %d: unexpected text starting: %s", s.GetCursor(), b)
	}
	expr, ok := root.(*Expr)
	if !ok || len(expr.Conds) == 0 {
		return nil, fmt.Errorf("filter: no conditions in %q", text)
	}
	for _, c := range expr.Conds {
		if _, ok := Value(&metrics.Metrics{}, c.Metric); !ok {
			return nil, fmt.Errorf("filter: unknown metric %q (expected one of %s)", c.Metric, strings.Join(Metrics, ", "))
		}
	}
	return expr, nil
}

func newParser() parsec.Parser {
	metric := parsec.Token(`[a-z_]+`, "METRIC")
	op := parsec.Token(`>=|<=|==|!=|>|<|=`, "OP")
	value := parsec.Token(`[0-9]+|true|false`, "VALUE")
	sep := parsec.OrdChoice(nil,
		parsec.Atom(",", "SEP"),
		parsec.Atom("&&", "SEP"),
		parsec.Token(`and\b`, "SEP"),
	)
	cond := parsec.And(condNode, metric, op, value)
	return parsec.Kleene(exprNode, cond, sep)
}

func condNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	terms := terminals(nodes)
	if len(terms) != 3 {
		return nil
	}
	c := Cond{Metric: terms[0].Value, Op: terms[1].Value}
	switch terms[2].Value {
	case "true":
		c.Value = 1
	case "false":
		c.Value = 0
	default:
		n, err := strconv.Atoi(terms[2].Value)
		if err != nil {
			return nil
		}
		c.Value = n
	}
	return c
}

func exprNode(nodes []parsec.ParsecNode) parsec.ParsecNode {
	expr := &Expr{}
	for _, n := range nodes {
		if c, ok := n.(Cond); ok {
			expr.Conds = append(expr.Conds, c)
		}
	}
	return expr
}

func terminals(nodes []parsec.ParsecNode) []*parsec.Terminal {
	var terms []*parsec.Terminal
	for _, n := range nodes {
		switch n := n.(type) {
		case *parsec.Terminal:
			terms = append(terms, n)
		case []parsec.ParsecNode:
			terms = append(terms, terminals(n)...)
		}
	}
	return terms
}
