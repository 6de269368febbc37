// Copyright © 2024 The ELPS authors

package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/owenrumney/go-sarif/v2/sarif"
)

// DefaultLabel names the flagged-call suffix in text output.
const DefaultLabel = "WebGL"

const (
	title       = "WebAssembly Function Summary"
	titleRule   = "==========================="
	toolName    = "watsum"
	toolInfoURI = "https://github.com/luthersystems/watsum"
)

// Writer renders a Report.
type Writer struct {
	Format Format
	// NameWidth truncates function names longer than NameWidth cells.  Zero
	// leaves names intact.
	NameWidth int
	// Label names the flagged-call suffix.  Empty means DefaultLabel.
	Label string
}

// Write renders r to w in a single write.
func (wr *Writer) Write(w io.Writer, r *Report) error {
	var buf bytes.Buffer
	var err error
	switch wr.Format {
	case "", FormatText:
		wr.writeText(&buf, r)
	case FormatJSON:
		err = wr.writeJSON(&buf, r)
	case FormatSARIF:
		err = wr.writeSARIF(&buf, r)
	default:
		err = fmt.Errorf("unknown format: %q", wr.Format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

func (wr *Writer) label() string {
	if wr.Label == "" {
		return DefaultLabel
	}
	return wr.Label
}

func (wr *Writer) name(e *Entry) string {
	if wr.NameWidth <= 0 {
		return e.Name
	}
	return truncate.StringWithTail(e.Name, uint(wr.NameWidth), "...")
}

func (wr *Writer) writeText(w io.Writer, r *Report) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, titleRule)
	fmt.Fprintln(w)
	if r.Truncated() {
		fmt.Fprintf(w, "Total functions analyzed: %d of %d found (truncated)\n", len(r.Entries), r.TotalFunctionsFound)
	} else if len(r.Entries) != r.TotalFunctionsFound {
		fmt.Fprintf(w, "Total functions analyzed: %d of %d found\n", len(r.Entries), r.TotalFunctionsFound)
	} else {
		fmt.Fprintf(w, "Total functions analyzed: %d\n", len(r.Entries))
	}
	if r.Filter != "" {
		fmt.Fprintf(w, "Filter: %s (%d excluded)\n", r.Filter, r.Excluded)
	}
	if r.Anomalies.Total() > 0 {
		fmt.Fprintf(w, "Anomalies: %s\n", r.Anomalies)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Format: (func $name) // Size: lines, Loads: count, Stores: count, Branches: count, Calls: count, [%s calls...]\n", wr.label())
	fmt.Fprintln(w)
	for i := range r.Entries {
		fmt.Fprintln(w, wr.entryLine(&r.Entries[i]))
	}
}

func (wr *Writer) entryLine(e *Entry) string {
	m := &e.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "(func %s)  // Size: %d lines, Loads: %d, Stores: %d, Branches: %d, Calls: %d",
		wr.name(e), m.BodyLines, m.Loads, m.Stores, m.Branches, m.Calls)
	if len(m.FlaggedCalls) > 0 {
		fmt.Fprintf(&b, ", %s: %s...", wr.label(), quoteList(m.FlaggedCalls))
	}
	if m.IsImport {
		b.WriteString(" [IMPORT]")
	}
	return b.String()
}

// quoteList renders names as a bracketed list of single-quoted strings.
func quoteList(names []string) string {
	q := make([]string, len(names))
	for i, name := range names {
		q[i] = quote(name)
	}
	return "[" + strings.Join(q, ", ") + "]"
}

func quote(s string) string {
	delim := "'"
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		delim = `"`
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	if delim == "'" {
		s = strings.ReplaceAll(s, "'", `\'`)
	}
	return delim + s + delim
}

type jsonReport struct {
	Source              string         `json:"source"`
	TotalFunctionsFound int            `json:"total_functions_found"`
	Retained            int            `json:"retained"`
	Truncated           bool           `json:"truncated"`
	Excluded            int            `json:"excluded,omitempty"`
	Filter              string         `json:"filter,omitempty"`
	Anomalies           map[string]int `json:"anomalies,omitempty"`
	Entries             []Entry        `json:"entries"`
}

func (wr *Writer) writeJSON(w io.Writer, r *Report) error {
	out := jsonReport{
		Source:              r.Source,
		TotalFunctionsFound: r.TotalFunctionsFound,
		Retained:            len(r.Entries),
		Truncated:           r.Truncated(),
		Excluded:            r.Excluded,
		Filter:              r.Filter,
		Entries:             make([]Entry, len(r.Entries)),
	}
	for i, e := range r.Entries {
		e.Name = wr.name(&e)
		if e.Metrics.FlaggedCalls == nil {
			e.Metrics.FlaggedCalls = []string{}
		}
		out.Entries[i] = e
	}
	for _, kind := range r.Anomalies.Kinds() {
		if out.Anomalies == nil {
			out.Anomalies = make(map[string]int)
		}
		out.Anomalies[kind.String()] = r.Anomalies.Count(kind)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

const (
	ruleCapabilityCall = "capability-call"
	ruleImportMarker   = "import-marker"
)

func (wr *Writer) writeSARIF(w io.Writer, r *Report) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report: %w", err)
	}
	run := sarif.NewRunWithInformationURI(toolName, toolInfoURI)
	capability := run.AddRule(ruleCapabilityCall).
		WithDescription(fmt.Sprintf("Function calls a %s capability API.", wr.label())).
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "note"})
	imported := run.AddRule(ruleImportMarker).
		WithDescription("Function is marked as an import.").
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: "note"})

	for i := range r.Entries {
		e := &r.Entries[i]
		if len(e.Metrics.FlaggedCalls) > 0 {
			msg := fmt.Sprintf("%s calls %s APIs: %s", wr.name(e), wr.label(), strings.Join(e.Metrics.FlaggedCalls, ", "))
			run.AddResult(sarif.NewRuleResult(capability.ID).
				WithMessage(sarif.NewTextMessage(msg)).
				WithLevel("note").
				WithLocations([]*sarif.Location{sarifLocation(r.Source, e)}))
		}
		if e.Metrics.IsImport {
			msg := fmt.Sprintf("%s is marked as an import", wr.name(e))
			run.AddResult(sarif.NewRuleResult(imported.ID).
				WithMessage(sarif.NewTextMessage(msg)).
				WithLevel("note").
				WithLocations([]*sarif.Location{sarifLocation(r.Source, e)}))
		}
	}
	report.AddRun(run)
	return report.PrettyWrite(w)
}

func sarifLocation(source string, e *Entry) *sarif.Location {
	return sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(source)).
			WithRegion(sarif.NewRegion().WithStartLine(e.StartLine).WithEndLine(e.EndLine)),
	)
}
