// Copyright © 2024 The ELPS authors

package cmd

import (
	"io"

	"github.com/luthersystems/watsum/diagnostic"
	"github.com/luthersystems/watsum/parser/token"
)

func newRenderer(color string) (*diagnostic.Renderer, error) {
	mode, err := diagnostic.ParseColorMode(color)
	if err != nil {
		return nil, err
	}
	return &diagnostic.Renderer{Color: mode}, nil
}

// renderAnomalies writes the anomaly samples as warnings to w.
func renderAnomalies(r *diagnostic.Renderer, w io.Writer, set *token.Anomalies) error {
	diags := diagnostic.FromAnomalies(set)
	if len(diags) == 0 {
		return nil
	}
	if err := r.RenderAll(w, diags); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// renderError writes err as an error diagnostic to w when it carries a
// source location.
func renderError(r *diagnostic.Renderer, w io.Writer, err error) {
	d, ok := diagnostic.FromError(err)
	if !ok {
		return
	}
	r.Render(w, d) //nolint:errcheck
}
