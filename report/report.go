// Copyright © 2024 The ELPS authors

// Package report accumulates function summaries and renders them.
package report

import (
	"fmt"
	"strings"

	"github.com/luthersystems/watsum/extract"
	"github.com/luthersystems/watsum/metrics"
	"github.com/luthersystems/watsum/parser/token"
)

// Format is an output format name.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatJSON, FormatSARIF}

// ParseFormat parses a format name.  The empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatSARIF:
		return f, nil
	}
	return "", fmt.Errorf("unknown format: %q", s)
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatSARIF:
		return "sarif"
	default:
		return "txt"
	}
}

// Entry is the summary of one retained function.
type Entry struct {
	Name        string          `json:"name"`
	Index       int             `json:"index"`
	StartOffset int             `json:"start_offset"`
	EndOffset   int             `json:"end_offset"`
	StartLine   int             `json:"start_line"`
	EndLine     int             `json:"end_line"`
	Metrics     metrics.Metrics `json:"metrics"`
}

// NewEntry returns the entry for a closed span.
func NewEntry(sp *extract.Span, m metrics.Metrics) Entry {
	return Entry{
		Name:        sp.Label(),
		Index:       sp.Index,
		StartOffset: sp.Start,
		EndOffset:   sp.End,
		StartLine:   sp.StartLine,
		EndLine:     sp.EndLine,
		Metrics:     m,
	}
}

// Report is the result of summarizing one document.
type Report struct {
	// Source names the summarized document.
	Source string

	// TotalFunctionsFound counts every top-level function, retained or not.
	TotalFunctionsFound int

	// Entries are the retained functions in discovery order.
	Entries []Entry

	// Excluded counts functions rejected by Filter.
	Excluded int

	// Filter is the canonical form of the active filter, if any.
	Filter string

	Anomalies *token.Anomalies
}

// Truncated reports whether functions that passed the filter were dropped
// because the entry cap was reached.
func (r *Report) Truncated() bool {
	return r.TotalFunctionsFound-r.Excluded > len(r.Entries)
}
