// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/muesli/reflow/truncate"
)

// DefaultSourceWidth is the display width at which source lines are cut.
const DefaultSourceWidth = 120

// maxSourceBytes bounds the bytes kept from one source line.  WAT data
// segments can put megabytes on a single line.
const maxSourceBytes = 4096

// Renderer formats diagnostics as Rust-style annotated source snippets.
type Renderer struct {
	// Color controls ANSI color output. Default is ColorAuto.
	Color ColorMode

	// OpenSource opens a source file for display.  If nil, os.Open is used.
	// Only the lines up to the annotated one are read.
	OpenSource func(string) (io.ReadCloser, error)

	// SourceWidth cuts displayed source lines.  Zero means
	// DefaultSourceWidth.
	SourceWidth int
}

// Render writes a single diagnostic to w.
func (r *Renderer) Render(w io.Writer, d Diagnostic) error {
	p := choosePalette(r.Color, fileFromWriter(w))
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}

	r.writeHeader(ew, d, p)
	for _, span := range d.Spans {
		r.writeSpan(ew, span, p)
	}
	for _, note := range d.Notes {
		ew.printf("   %s=%s note: %s\n", p.boldCyan, p.reset, note)
	}

	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// RenderAll writes all diagnostics to w separated by blank lines.
func (r *Renderer) RenderAll(w io.Writer, diags []Diagnostic) error {
	for i, d := range diags {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := r.Render(w, d); err != nil {
			return err
		}
	}
	return nil
}

// errWriter captures the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (r *Renderer) writeHeader(ew *errWriter, d Diagnostic, p palette) {
	var sevColor string
	switch d.Severity {
	case SeverityError:
		sevColor = p.boldRed
	case SeverityWarning:
		sevColor = p.yellow
	case SeverityNote:
		sevColor = p.boldCyan
	}
	ew.printf("%s%s%s%s: %s%s%s\n",
		sevColor, p.bold, d.Severity, p.reset,
		p.bold, d.Message, p.reset)
}

func (r *Renderer) sourceWidth() int {
	if r.SourceWidth <= 0 {
		return DefaultSourceWidth
	}
	return r.SourceWidth
}

func (r *Renderer) writeSpan(ew *errWriter, span Span, p palette) {
	loc := span.File
	if span.Line > 0 {
		loc = fmt.Sprintf("%s:%d", span.File, span.Line)
		if span.Col > 0 {
			loc = fmt.Sprintf("%s:%d:%d", span.File, span.Line, span.Col)
		}
	}
	ew.printf("  %s-->%s %s\n", p.boldBlue, p.reset, loc)

	col := span.Col
	if col <= 0 {
		col = 1
	}
	source := r.readSourceLine(span.File, span.Line)
	displayCol := col - 1
	if col-1 <= len(source) {
		displayCol = displayWidth(source[:col-1])
	}
	width := r.sourceWidth()
	if source == "" || displayCol >= width {
		ew.printf("   %s|%s\n", p.boldBlue, p.reset)
		if span.Label != "" {
			ew.printf("   %s=%s %s\n", p.boldCyan, p.reset, span.Label)
		}
		return
	}

	lineStr := fmt.Sprintf("%d", span.Line)
	pad := strings.Repeat(" ", len(lineStr))
	ew.printf(" %s%s |%s\n", p.boldBlue, pad, p.reset)

	displaySource := strings.ReplaceAll(source, "\t", "    ")
	if displayWidth(source) > width {
		displaySource = truncate.StringWithTail(displaySource, uint(width), "...")
	}
	ew.printf(" %s%s |%s  %s\n", p.boldBlue, lineStr, p.reset, displaySource)

	endCol := span.EndCol
	if endCol <= 0 {
		endCol = r.detectEndCol(source, col)
	}
	if endCol < col {
		endCol = col
	}
	underLen := endCol - col + 1
	if displayCol+underLen > width {
		underLen = width - displayCol
	}

	underPad := strings.Repeat(" ", displayCol)
	underline := strings.Repeat("^", underLen)
	ew.printf(" %s%s |%s  %s%s%s%s", p.boldBlue, pad, p.reset, underPad, p.boldRed, underline, p.reset)
	if span.Label != "" {
		ew.printf(" %s%s%s", p.boldRed, span.Label, p.reset)
	}
	ew.print("\n")
	ew.printf(" %s%s |%s\n", p.boldBlue, pad, p.reset)
}

// readSourceLine streams file up to line and returns that line, cut to
// maxSourceBytes.
func (r *Renderer) readSourceLine(file string, line int) string {
	if line <= 0 || file == "" || file == "-" {
		return ""
	}
	open := r.OpenSource
	if open == nil {
		open = func(name string) (io.ReadCloser, error) {
			return os.Open(name) //nolint:gosec // reads user-specified source files for display
		}
	}
	rc, err := open(file)
	if err != nil {
		return ""
	}
	defer rc.Close() //nolint:errcheck
	br := bufio.NewReader(rc)
	for i := 1; ; i++ {
		text, err := readLine(br, i == line)
		if i == line {
			return text
		}
		if err != nil {
			return ""
		}
	}
}

func readLine(br *bufio.Reader, keep bool) (string, error) {
	var b []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if keep && len(b) < maxSourceBytes {
			b = append(b, chunk...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if len(b) > maxSourceBytes {
			b = b[:maxSourceBytes]
			for len(b) > 0 && !utf8.Valid(b[lastRuneStart(b):]) {
				b = b[:lastRuneStart(b)]
			}
		}
		return strings.TrimRight(string(b), "\r\n"), err
	}
}

func lastRuneStart(b []byte) int {
	i := len(b) - 1
	for i > 0 && !utf8.RuneStart(b[i]) {
		i--
	}
	return i
}

// detectEndCol scans from col to the end of the current WAT token.
func (r *Renderer) detectEndCol(source string, col int) int {
	if col <= 0 || col > len(source) {
		return col
	}
	end := col - 1 // 0-based
	for end < len(source) {
		ch, size := utf8.DecodeRuneInString(source[end:])
		if ch == ' ' || ch == '\t' || ch == '(' || ch == ')' || ch == ';' || ch == '"' {
			break
		}
		end += size
	}
	if end == col-1 {
		return col
	}
	return end
}

// displayWidth returns the display width of a string, expanding tabs to 4 spaces.
func displayWidth(s string) int {
	w := 0
	for _, ch := range s {
		if ch == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}

// fileFromWriter returns the *os.File behind w, or nil.
func fileFromWriter(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
