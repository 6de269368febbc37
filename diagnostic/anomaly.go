// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"fmt"

	"github.com/luthersystems/watsum/parser/token"
)

var anomalyLabels = map[token.AnomalyKind]string{
	token.UnterminatedString:  "string closed at end of line",
	token.UnterminatedComment: "comment closed at end of input",
	token.InvalidUTF8:         "replaced with U+FFFD",
	token.UnmatchedClose:      "no matching open paren",
	token.UnclosedFunc:        "function discarded",
	token.UnclosedParen:       "input ends inside a form",
}

// FromAnomaly returns a warning describing a.
func FromAnomaly(a token.Anomaly) Diagnostic {
	d := Diagnostic{
		Severity: SeverityWarning,
		Message:  a.Kind.String(),
	}
	if loc := a.Source; loc != nil {
		file := loc.Path
		if file == "" {
			file = loc.File
		}
		d.Spans = []Span{{
			File:  file,
			Line:  loc.Line,
			Col:   loc.Col,
			Label: anomalyLabels[a.Kind],
		}}
	} else if label := anomalyLabels[a.Kind]; label != "" {
		d.Notes = []string{label}
	}
	return d
}

// FromAnomalies returns one warning per retained sample.  When samples were
// dropped a final note states the totals.
func FromAnomalies(set *token.Anomalies) []Diagnostic {
	samples := set.Samples()
	diags := make([]Diagnostic, 0, len(samples)+1)
	for _, a := range samples {
		diags = append(diags, FromAnomaly(a))
	}
	// Invalid UTF-8 is recorded once with the total count.
	var counted int
	for _, a := range samples {
		if a.Kind == token.InvalidUTF8 {
			counted += set.Count(token.InvalidUTF8)
		} else {
			counted++
		}
	}
	if set.Total() > counted {
		diags = append(diags, Diagnostic{
			Severity: SeverityNote,
			Message:  fmt.Sprintf("%d more anomalies not shown", set.Total()-counted),
			Notes:    []string{"totals: " + set.String()},
		})
	}
	return diags
}
