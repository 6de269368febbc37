// Copyright © 2024 The ELPS authors

// Package extract locates top-level function forms in a WAT token stream.
//
// Boundaries are found by counting parens, so a function ends at the close
// paren matching its own open paren no matter what its body contains.  A
// form is top-level when it opens at depth 0, or directly inside a top-level
// (module ...) form.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/luthersystems/watsum/parser/token"
)

// Span is the extent of one function form.  Start and End are the byte
// offsets of the open paren and of its matching close paren.
type Span struct {
	Name      string // "$name" or empty for an anonymous function
	Index     int    // zero-based ordinal among discovered functions
	Start     int
	End       int
	StartLine int
	EndLine   int

	// InlineImport is true when the function has a direct (import ...)
	// child form.
	InlineImport bool

	open  *token.Location
	depth int
}

// Label returns the function name, or "$<index>" for an anonymous function.
func (sp *Span) Label() string {
	if sp.Name != "" {
		return sp.Name
	}
	return fmt.Sprintf("$%d", sp.Index)
}

// Lines returns the number of lines the span touches.
func (sp *Span) Lines() int {
	return sp.EndLine - sp.StartLine + 1
}

// Handler receives functions as they are discovered.
type Handler interface {
	// OpenFunc is called when a function form opens.  The span's name is not
	// known yet.  Returning false suppresses FuncToken and CloseFunc calls
	// for the function; it is still counted.
	OpenFunc(sp *Span) bool
	// FuncToken is called for every token of the function, its own parens
	// and comments included.
	FuncToken(sp *Span, tok *token.Token)
	// CloseFunc is called once the matching close paren has been read.
	CloseFunc(sp *Span)
}

// Stats summarizes a completed run.
type Stats struct {
	Found     int // closed top-level functions, whether delivered or not
	Discarded int // functions still open at end of input
}

// Extractor tracks paren depth over a token stream.
type Extractor struct {
	src       token.Source
	anomalies *token.Anomalies

	depth   int
	base    int // depth enclosing top-level function forms
	module  int // depth of the open module form, 0 when there is none
	pending []*token.Token
	span    *Span
	deliver bool
	naming  bool
	ordinal int
	stats   Stats
}

// New returns an Extractor reading src.  Structural anomalies are recorded
// in anomalies, which may be nil.
func New(src token.Source, anomalies *token.Anomalies) *Extractor {
	if anomalies == nil {
		anomalies = &token.Anomalies{}
	}
	return &Extractor{
		src:       src,
		anomalies: anomalies,
	}
}

// Anomalies returns the anomaly set the extractor records into.
func (ex *Extractor) Anomalies() *token.Anomalies {
	return ex.anomalies
}

const cancelCheckInterval = 4096

// Run consumes the whole stream, calling h for each function.  It returns an
// error only when the stream fails or ctx is cancelled.
func (ex *Extractor) Run(ctx context.Context, h Handler) (Stats, error) {
	var n int
	for ex.src.Scan() {
		ex.step(ex.src.Token(), h)
		n++
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return ex.stats, err
			}
		}
	}
	if err := streamErr(ex.src); err != nil {
		return ex.stats, err
	}
	ex.finish()
	return ex.stats, nil
}

func streamErr(src token.Source) error {
	if s, ok := src.(interface{ Err() error }); ok {
		if err := s.Err(); err != nil {
			return err
		}
	}
	if tok := src.Token(); tok != nil && tok.Type == token.ERROR {
		return &token.LocationError{Err: errors.New(tok.Text), Source: tok.Source}
	}
	return nil
}

func (ex *Extractor) step(tok *token.Token, h Handler) {
	switch tok.Type {
	case token.COMMENT:
		if len(ex.pending) > 0 {
			ex.pending = append(ex.pending, tok)
			return
		}
		ex.emit(tok, h)
	case token.PAREN_L:
		ex.flush(h)
		ex.naming = false
		ex.depth++
		ex.pending = append(ex.pending, tok)
	case token.PAREN_R:
		ex.flush(h)
		ex.naming = false
		ex.closeParen(tok, h)
	default:
		if len(ex.pending) > 0 {
			ex.keyword(tok, h)
			return
		}
		ex.value(tok, h)
	}
}

// keyword handles the first token of a form.
func (ex *Extractor) keyword(tok *token.Token, h Handler) {
	switch {
	case ex.span == nil && ex.module == 0 && ex.depth == 1 && tok.Is("module"):
		ex.module = ex.depth
		ex.base = ex.depth
	case ex.span == nil && ex.depth == ex.base+1 && tok.Is("func"):
		ex.openFunc(h)
		ex.flush(h)
		ex.emit(tok, h)
		ex.naming = true
		return
	case ex.span != nil && ex.depth == ex.span.depth+1 && tok.Is("import"):
		ex.span.InlineImport = true
	}
	ex.flush(h)
	ex.value(tok, h)
}

func (ex *Extractor) value(tok *token.Token, h Handler) {
	if ex.naming {
		ex.naming = false
		if tok.Type == token.ATOM && strings.HasPrefix(tok.Text, "$") {
			ex.span.Name = tok.Text
		}
	}
	ex.emit(tok, h)
}

func (ex *Extractor) openFunc(h Handler) {
	open := ex.pending[0].Source
	ex.span = &Span{
		Index:     ex.ordinal,
		Start:     open.Pos,
		StartLine: open.Line,
		open:      open,
		depth:     ex.depth,
	}
	ex.ordinal++
	ex.deliver = h.OpenFunc(ex.span)
}

func (ex *Extractor) closeParen(tok *token.Token, h Handler) {
	if ex.depth == 0 {
		ex.anomalies.Add(token.UnmatchedClose, tok.Source)
		return
	}
	ex.emit(tok, h)
	if ex.span != nil && ex.depth == ex.span.depth {
		ex.span.End = tok.Source.Pos
		ex.span.EndLine = tok.Source.Line
		ex.stats.Found++
		if ex.deliver {
			h.CloseFunc(ex.span)
		}
		ex.span = nil
	}
	if ex.module != 0 && ex.depth == ex.module {
		ex.module = 0
		ex.base = 0
	}
	ex.depth--
}

func (ex *Extractor) emit(tok *token.Token, h Handler) {
	if ex.span != nil && ex.deliver {
		h.FuncToken(ex.span, tok)
	}
}

func (ex *Extractor) flush(h Handler) {
	for _, tok := range ex.pending {
		ex.emit(tok, h)
	}
	ex.pending = ex.pending[:0]
}

func (ex *Extractor) finish() {
	ex.pending = ex.pending[:0]
	switch {
	case ex.span != nil:
		ex.anomalies.Add(token.UnclosedFunc, ex.span.open)
		ex.stats.Discarded++
		ex.span = nil
	case ex.depth > 0:
		ex.anomalies.Add(token.UnclosedParen, ex.src.Token().Source)
	}
}
