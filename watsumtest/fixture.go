// Copyright © 2024 The ELPS authors

// Package watsumtest provides helpers for testing summaries.
package watsumtest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// FuncLines is the number of lines of each generated function.
const FuncLines = 8

// Module describes a generated WAT module.
//
// Function i is named $f<i>.  Each has one load, one store, one block and a
// call to $helper.  Every function whose index is a multiple of FlagEvery
// also calls $texImage2D twice.  Comments and strings inside and around the
// functions contain decoy func forms that must not be counted.
type Module struct {
	Funcs     int
	FlagEvery int // zero disables flagged calls
}

// Flagged reports whether function i calls $texImage2D.
func (m Module) Flagged(i int) bool {
	return m.FlagEvery > 0 && i%m.FlagEvery == 0
}

// WriteTo writes the module text to w.
func (m Module) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: bufio.NewWriter(w)}
	fmt.Fprintln(cw, "(module")
	fmt.Fprintln(cw, `  (import "env" "texImage2D" (func $texImage2D (param i32)))`)
	fmt.Fprintln(cw, `  ;; (func $fake_header)`)
	for i := 0; i < m.Funcs; i++ {
		calls := "(call $helper)"
		if m.Flagged(i) {
			calls += " (call $texImage2D) (call $texImage2D)"
		}
		fmt.Fprintf(cw, "  (func $f%d (param $p i32) (result i32)\n", i)
		fmt.Fprintf(cw, "    ;; (func $fake%d)\n", i)
		fmt.Fprintln(cw, "    (block")
		fmt.Fprintln(cw, "      (i32.load (local.get $p))")
		fmt.Fprintf(cw, "      (i32.store (local.get $p) (i32.const %d)))\n", i)
		fmt.Fprintf(cw, "    %s\n", calls)
		fmt.Fprintf(cw, "    (; (func $ghost%d) ;)\n", i)
		fmt.Fprintln(cw, "    (drop (i32.const 0)))")
	}
	fmt.Fprintln(cw, `  (export "f0" (func $f0))`)
	fmt.Fprintln(cw, `  (data (i32.const 0) "(func $fake_data)"))`)
	if err := cw.w.(*bufio.Writer).Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

// Bytes returns the module text.
func (m Module) Bytes() []byte {
	var buf bytes.Buffer
	m.WriteTo(&buf) //nolint:errcheck
	return buf.Bytes()
}

// WriteFile writes the module to name under dir and returns its path.
func (m Module) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	return WriteFile(t, dir, name, m.Bytes())
}

// WriteFile writes content to name under dir and returns its path.
func WriteFile(t testing.TB, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil { //#nosec G306
		t.Fatal(err)
	}
	return path
}

// BenchmarkReader benchmarks fn reading src.
func BenchmarkReader(src []byte, fn func(io.Reader) error) func(*testing.B) {
	return func(b *testing.B) {
		b.SetBytes(int64(len(src)))
		for i := 0; i < b.N; i++ {
			if err := fn(bytes.NewReader(src)); err != nil {
				b.Fatalf("Summarize failure: %v", err)
			}
		}
	}
}

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countWriter) Write(b []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	cw.err = err
	return n, err
}
