// Copyright © 2024 The ELPS authors

package token

import (
	"fmt"
	"strings"
)

// AnomalyKind classifies structural damage that was recovered from while
// scanning a document.
type AnomalyKind int

const (
	UnterminatedString AnomalyKind = iota
	UnterminatedComment
	InvalidUTF8
	UnmatchedClose
	UnclosedFunc
	UnclosedParen

	numAnomalyKinds
)

func (k AnomalyKind) String() string {
	switch k {
	case UnterminatedString:
		return "unterminated string"
	case UnterminatedComment:
		return "unterminated block comment"
	case InvalidUTF8:
		return "invalid utf-8"
	case UnmatchedClose:
		return "unmatched close paren"
	case UnclosedFunc:
		return "unclosed function"
	case UnclosedParen:
		return "unclosed paren"
	default:
		return "unknown"
	}
}

// MaxAnomalySamples bounds the number of anomaly locations retained.
const MaxAnomalySamples = 16

// Anomaly is a single recorded anomaly.  Source may be nil when the anomaly
// has no meaningful position.
type Anomaly struct {
	Kind   AnomalyKind
	Source *Location
}

// Anomalies counts anomalies by kind and keeps the first few locations.  The
// zero value is ready to use.
type Anomalies struct {
	counts  [numAnomalyKinds]int
	samples []Anomaly
}

// Add records one anomaly of the given kind.
func (a *Anomalies) Add(kind AnomalyKind, loc *Location) {
	a.AddN(kind, 1, loc)
}

// AddN records n anomalies of the given kind sharing one location.
func (a *Anomalies) AddN(kind AnomalyKind, n int, loc *Location) {
	if n <= 0 || kind < 0 || kind >= numAnomalyKinds {
		return
	}
	a.counts[kind] += n
	if len(a.samples) < MaxAnomalySamples {
		a.samples = append(a.samples, Anomaly{Kind: kind, Source: loc})
	}
}

// Count returns the number of anomalies recorded for kind.
func (a *Anomalies) Count(kind AnomalyKind) int {
	if a == nil || kind < 0 || kind >= numAnomalyKinds {
		return 0
	}
	return a.counts[kind]
}

// Total returns the number of anomalies of every kind.
func (a *Anomalies) Total() int {
	if a == nil {
		return 0
	}
	var n int
	for _, c := range a.counts {
		n += c
	}
	return n
}

// Samples returns the retained anomaly locations in the order recorded.
func (a *Anomalies) Samples() []Anomaly {
	if a == nil {
		return nil
	}
	return a.samples
}

// Kinds returns the kinds with a non-zero count in declaration order.
func (a *Anomalies) Kinds() []AnomalyKind {
	if a == nil {
		return nil
	}
	var kinds []AnomalyKind
	for k, c := range a.counts {
		if c > 0 {
			kinds = append(kinds, AnomalyKind(k))
		}
	}
	return kinds
}

// String summarizes the counts, e.g. "2 (unterminated string: 1, unclosed
// function: 1)".
func (a *Anomalies) String() string {
	kinds := a.Kinds()
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s: %d", k, a.Count(k)))
	}
	return fmt.Sprintf("%d (%s)", a.Total(), strings.Join(parts, ", "))
}
