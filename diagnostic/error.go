// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"errors"

	"github.com/luthersystems/watsum/parser/token"
)

// FromError returns an error diagnostic pointing at the location carried by
// err.  It reports false when err has no location.
func FromError(err error) (Diagnostic, bool) {
	var lerr *token.LocationError
	if !errors.As(err, &lerr) || lerr.Source == nil {
		return Diagnostic{}, false
	}
	loc := lerr.Source
	file := loc.Path
	if file == "" {
		file = loc.File
	}
	msg := "read failed"
	if lerr.Err != nil {
		msg = lerr.Err.Error()
	}
	return Diagnostic{
		Severity: SeverityError,
		Message:  msg,
		Spans: []Span{{
			File:  file,
			Line:  loc.Line,
			Col:   loc.Col,
			Label: "input stops here",
		}},
	}, true
}
