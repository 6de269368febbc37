// Copyright © 2024 The ELPS authors

package metrics

import (
	"fmt"
	"strings"

	"github.com/luthersystems/watsum/parser/token"
)

// DefaultAnalyzers returns the built-in analyzers in reporting order.
func DefaultAnalyzers() []*Analyzer {
	return []*Analyzer{
		AnalyzerMemory,
		AnalyzerBranches,
		AnalyzerCalls,
		AnalyzerImport,
	}
}

// AnalyzerDoc returns a summary line for each analyzer.
func AnalyzerDoc(analyzers []*Analyzer) string {
	var b strings.Builder
	for _, a := range analyzers {
		summary, _, _ := strings.Cut(a.Doc, "\n")
		fmt.Fprintf(&b, "  %-10s %s\n", a.Name, summary)
	}
	return b.String()
}

var memoryTypes = []string{"i32.", "i64.", "f32.", "f64."}

// memoryOp reports whether text is a numeric memory instruction for op,
// e.g. i32.load or i64.load8_u for "load".
func memoryOp(text string, op string) bool {
	for _, typ := range memoryTypes {
		if strings.HasPrefix(text, typ) {
			return strings.HasPrefix(text[len(typ):], op)
		}
	}
	return false
}

// AnalyzerMemory counts numeric load and store instructions.
var AnalyzerMemory = &Analyzer{
	Name: "memory",
	Doc:  "Count numeric load and store instructions.\n\nMatches whole tokens such as i32.load, f64.store or i64.load8_u. Identifiers that merely contain \"load\" are not counted.",
	Visit: func(pass *Pass, tok *token.Token) {
		if tok.Type != token.ATOM {
			return
		}
		switch {
		case memoryOp(tok.Text, "load"):
			pass.Metrics.Loads++
		case memoryOp(tok.Text, "store"):
			pass.Metrics.Stores++
		}
	},
}

var branchKeywords = map[string]bool{
	"br_if": true,
	"if":    true,
	"loop":  true,
	"block": true,
}

// AnalyzerBranches counts control flow instructions.
var AnalyzerBranches = &Analyzer{
	Name: "branches",
	Doc:  "Count the control flow instructions br_if, if, loop and block.",
	Visit: func(pass *Pass, tok *token.Token) {
		if tok.Type == token.ATOM && branchKeywords[tok.Text] {
			pass.Metrics.Branches++
		}
	},
}

// AnalyzerCalls counts calls and flags callees matching a keyword.
var AnalyzerCalls = &Analyzer{
	Name: "calls",
	Doc:  "Count call and call_indirect instructions and flag callees.\n\nThe $name following call is matched case-insensitively against the keyword set. The first matches are kept, each name once.",
	Visit: func(pass *Pass, tok *token.Token) {
		if tok.Type != token.ATOM {
			return
		}
		if tok.Is("call") || tok.Is("call_indirect") {
			pass.Metrics.Calls++
			return
		}
		if prev := pass.Prev(); prev != nil && prev.Is("call") && strings.HasPrefix(tok.Text, "$") {
			pass.Callee(tok.Text[1:])
		}
	},
}

// AnalyzerImport classifies a function as an import.
var AnalyzerImport = &Analyzer{
	Name: "import",
	Doc:  "Mark functions that look like imports.\n\nIn lexical mode any token containing \"import\" marks the function, comments and strings included. In structural mode only a direct (import ...) child does.",
	Visit: func(pass *Pass, tok *token.Token) {
		if pass.ImportMode() == ImportLexical && strings.Contains(tok.Text, "import") {
			pass.Metrics.IsImport = true
		}
	},
	Finish: func(pass *Pass) {
		if pass.ImportMode() == ImportStructural && pass.Span != nil {
			pass.Metrics.IsImport = pass.Span.InlineImport
		}
	},
}
