// Copyright © 2024 The ELPS authors

// Package metrics computes per-function statistics over the tokens of a
// function span.
//
// Each statistic is produced by an Analyzer that sees every token of the
// span once.  A Collector runs a set of analyzers together so a function is
// measured in a single pass with no copy of its text.
package metrics

import (
	"fmt"
	"strings"

	"github.com/luthersystems/watsum/extract"
	"github.com/luthersystems/watsum/parser/token"
)

// ImportMode selects how a function is classified as an import.
type ImportMode string

const (
	// ImportLexical marks a function whose text contains "import" anywhere,
	// comments and strings included.
	ImportLexical ImportMode = "lexical"
	// ImportStructural marks a function with a direct (import ...) child.
	ImportStructural ImportMode = "structural"
)

// ParseImportMode parses a mode name.  The empty string is ImportLexical.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(s)) {
	case "", ImportLexical:
		return ImportLexical, nil
	case ImportStructural:
		return ImportStructural, nil
	}
	return "", fmt.Errorf("unknown import mode: %q", s)
}

// DefaultKeywords are the capability keywords used to flag callees.
var DefaultKeywords = []string{"tex", "draw", "uniform", "buffer", "shader", "program", "framebuffer"}

// DefaultFlaggedLimit is the default number of flagged callees kept per
// function.
const DefaultFlaggedLimit = 3

// Metrics are the statistics of one function.
type Metrics struct {
	Loads        int      `json:"loads"`
	Stores       int      `json:"stores"`
	Branches     int      `json:"branches"`
	Calls        int      `json:"calls"`
	FlaggedCalls []string `json:"flagged_calls"`
	IsImport     bool     `json:"is_import"`
	BodyLines    int      `json:"body_line_count"`
}

// Config controls classification.
type Config struct {
	// Keywords are matched case-insensitively as substrings of callee names.
	Keywords []string
	// FlaggedLimit caps FlaggedCalls.  Zero or less keeps every match.
	FlaggedLimit int
	ImportMode   ImportMode
	// Analyzers overrides DefaultAnalyzers when non-nil.
	Analyzers []*Analyzer
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Keywords:     append([]string(nil), DefaultKeywords...),
		FlaggedLimit: DefaultFlaggedLimit,
		ImportMode:   ImportLexical,
	}
}

// Analyzer computes part of a function's Metrics.
type Analyzer struct {
	// Name is a short identifier (e.g. "memory").
	Name string

	// Doc is a human-readable description.  The first line is a short
	// summary.
	Doc string

	// Visit is called for every token of the span in order.
	Visit func(pass *Pass, tok *token.Token)

	// Finish, when set, is called after the last token.
	Finish func(pass *Pass)
}

// Pass provides context to analyzers measuring one function.
type Pass struct {
	Span    *extract.Span
	Metrics *Metrics

	keywords []string
	limit    int
	mode     ImportMode
	prev     *token.Token
	flagged  map[string]bool
}

// Prev returns the token before the current one, skipping comments.  It is
// nil at the start of the span.
func (p *Pass) Prev() *token.Token {
	return p.prev
}

// ImportMode returns the configured import classification.
func (p *Pass) ImportMode() ImportMode {
	return p.mode
}

// Callee records the name of a called function, flagging it when it
// matches a keyword.  Each name is flagged at most once.
func (p *Pass) Callee(name string) {
	if p.limit > 0 && len(p.Metrics.FlaggedCalls) >= p.limit {
		return
	}
	if p.flagged[name] || !p.matches(name) {
		return
	}
	if p.flagged == nil {
		p.flagged = make(map[string]bool)
	}
	p.flagged[name] = true
	p.Metrics.FlaggedCalls = append(p.Metrics.FlaggedCalls, name)
}

func (p *Pass) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range p.keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Collector runs analyzers over one function at a time.
type Collector struct {
	analyzers []*Analyzer
	pass      Pass
	metrics   Metrics
}

// NewCollector returns a Collector for cfg.  A nil cfg uses DefaultConfig.
func NewCollector(cfg *Config) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Collector{analyzers: cfg.Analyzers}
	if c.analyzers == nil {
		c.analyzers = DefaultAnalyzers()
	}
	mode := cfg.ImportMode
	if mode == "" {
		mode = ImportLexical
	}
	keywords := make([]string, len(cfg.Keywords))
	for i, kw := range cfg.Keywords {
		keywords[i] = strings.ToLower(kw)
	}
	c.pass = Pass{
		keywords: keywords,
		limit:    cfg.FlaggedLimit,
		mode:     mode,
	}
	return c
}

// Begin starts measuring sp, discarding any function in progress.
func (c *Collector) Begin(sp *extract.Span) {
	c.metrics = Metrics{}
	c.pass.Span = sp
	c.pass.Metrics = &c.metrics
	c.pass.prev = nil
	c.pass.flagged = nil
}

// Visit feeds the next token of the current function.
func (c *Collector) Visit(tok *token.Token) {
	for _, a := range c.analyzers {
		if a.Visit != nil {
			a.Visit(&c.pass, tok)
		}
	}
	if tok.Type != token.COMMENT {
		c.pass.prev = tok
	}
}

// End finishes the current function and returns its metrics.  The span
// must be closed.
func (c *Collector) End() Metrics {
	for _, a := range c.analyzers {
		if a.Finish != nil {
			a.Finish(&c.pass)
		}
	}
	if sp := c.pass.Span; sp != nil {
		c.metrics.BodyLines = sp.Lines()
	}
	m := c.metrics
	c.pass.Span = nil
	c.pass.Metrics = nil
	return m
}

// Analyze measures a closed span from its tokens.
func Analyze(sp *extract.Span, toks []*token.Token, cfg *Config) Metrics {
	c := NewCollector(cfg)
	c.Begin(sp)
	for _, tok := range toks {
		c.Visit(tok)
	}
	return c.End()
}
