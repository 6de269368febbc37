// Copyright © 2018 The ELPS authors

package token

import (
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultWindowSize is the size of the buffer a Scanner reads through.
const DefaultWindowSize = 128 << 10

// ErrTokenTooLong is returned by ScanRune when the current token fills the
// entire scanner window.
var ErrTokenTooLong = errors.New("token exceeds maximum allowable size")

// Scanner facilitates construction of tokens from a byte stream (io.Reader).
// Only a fixed window of the stream is held in memory.  Bytes which do not
// form valid utf-8 are scanned one at a time as utf8.RuneError and counted.
type Scanner struct {
	file         string
	path         string
	base         int // stream offset of buf[0]
	line         int // line number at next
	linePos      int // stream offset of the first byte of the line at next
	startLine    int // line number at start
	startLinePos int // linePos at start

	r       io.Reader
	readErr error

	buf     []byte
	start   int // start of the current token
	pos     int // index of c, a utf-8 rune in input
	next    int // index of the rune following pos
	c       Rune
	invalid int
}

func newScannerBuf(file string, r io.Reader, buf []byte) *Scanner {
	s := &Scanner{
		file:      file,
		r:         r,
		buf:       buf[:0],
		line:      1,
		startLine: 1,
	}
	s.fill()

	return s
}

// NewScanner initializes and returns a new Scanner.
func NewScanner(file string, r io.Reader) *Scanner {
	return NewScannerSize(file, r, DefaultWindowSize)
}

// NewScannerSize initializes a Scanner with a window of the given size.
func NewScannerSize(file string, r io.Reader, size int) *Scanner {
	if size < utf8.UTFMax {
		size = utf8.UTFMax
	}
	return newScannerBuf(file, r, make([]byte, size))
}

// SetPath associates a physical location (e.g. filesystem path) with s to aid
// in debugging projects which scan many ungrouped files.
func (s *Scanner) SetPath(path string) {
	s.path = path
}

// EmitToken returns a token containing the text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) EmitToken(typ Type) *Token {
	tok := &Token{
		Type:   typ,
		Text:   s.Text(),
		Source: s.LocStart(),
	}
	s.Ignore()
	return tok
}

// Ignore causes the scanner to skip all text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) Ignore() {
	s.start = s.next
	s.startLine = s.line
	s.startLinePos = s.linePos
}

// Text returns a string containing text scanned since the last call to either
// EmitToken or Ignore.
func (s *Scanner) Text() string {
	return string(s.buf[s.start:s.next])
}

// Rune returns the current unicode rune that is being scanned.  The rune
// returned by Rune is the last rune in a token returned by EmitToken.
func (s *Scanner) Rune() rune {
	return s.c.C
}

// Peek returns the next rune to be scanned, if there are any.  If EOF, a read
// error, or a full window prevents further runes from being scanned Peek
// returns a false second value.
func (s *Scanner) Peek() (rune, bool) {
	if !s.ensure() || !s.complete() {
		return 0, false
	}
	c, _ := utf8.DecodeRune(s.buf[s.next:])
	return c, true
}

// ScanRune attempts to scan a rune from the input for inclusion in the current
// token.  At the end of input ScanRune returns io.EOF.
func (s *Scanner) ScanRune() error {
	if !s.ensure() {
		if s.readErr != nil {
			return s.readErr
		}
		return ErrTokenTooLong
	}
	if !s.complete() {
		return ErrTokenTooLong
	}
	c, n := utf8.DecodeRune(s.buf[s.next:])
	r := Rune{c, n}
	if r.IsRuneError() {
		s.invalid++
	}
	s.scan(r)
	return nil
}

func (s *Scanner) scan(r Rune) {
	s.c = r
	s.pos = s.next
	s.next += r.N
	if r.C == '\n' {
		s.line++
		s.linePos = s.base + s.next
	}
}

// Err returns an error encountered during the last read on the input stream.
// Err will always return nil while there are still buffered runes that need
// to be accepted.
func (s *Scanner) Err() error {
	if s.readErr == nil || s.readErr == io.EOF {
		return nil
	}
	if s.next < len(s.buf) {
		return nil
	}
	return s.readErr
}

// EOF reports whether the whole stream has been scanned.
func (s *Scanner) EOF() bool {
	return !s.ensure() && s.readErr == io.EOF
}

// Full reports whether the current token occupies the whole window, so that
// nothing more can be scanned until the token is emitted or ignored.
func (s *Scanner) Full() bool {
	return s.readErr == nil &&
		s.start == 0 &&
		len(s.buf) == cap(s.buf) &&
		!utf8.FullRune(s.buf[s.next:])
}

// Len returns the number of bytes scanned since the last call to either
// EmitToken or Ignore.
func (s *Scanner) Len() int {
	return s.next - s.start
}

// Offset returns the stream offset of the next rune to be scanned.
func (s *Scanner) Offset() int {
	return s.base + s.next
}

// Invalid returns the number of invalid utf-8 sequences scanned so far.
func (s *Scanner) Invalid() int {
	return s.invalid
}

func (s *Scanner) Accept(fn func(rune) bool) bool {
	peek, ok := s.Peek()
	if !ok {
		return false
	}
	if fn(peek) {
		err := s.ScanRune()
		if err != nil {
			return false
		}
		return true
	}
	return false
}

func (s *Scanner) AcceptRune(c rune) bool {
	peek, ok := s.Peek()
	if !ok {
		return false
	}
	if peek == c {
		err := s.ScanRune()
		if err != nil {
			return false
		}
		return true
	}
	return false
}

func (s *Scanner) AcceptSpace() bool {
	return s.Accept(unicode.IsSpace)
}

func (s *Scanner) AcceptAny(charset string) bool {
	if len(charset) == 1 {
		return s.AcceptRune(rune(charset[0]))
	}
	return s.Accept(func(c rune) bool { return strings.ContainsRune(charset, c) })
}

func (s *Scanner) AcceptSeq(fn func(rune) bool) int {
	var n int
	for s.Accept(fn) {
		n++
	}
	return n
}

func (s *Scanner) AcceptSeqSpace() int {
	var n int
	for s.AcceptSpace() {
		n++
	}
	return n
}

func (s *Scanner) AcceptString(literal string) (int, bool) {
	var n int
	for _, c := range literal {
		if !s.AcceptRune(c) {
			return n, false
		}
		n++
	}
	return n, true
}

// LocStart returns a Location referencing the beginning of the current token,
// just beyond the end of the previous token.
func (s *Scanner) LocStart() *Location {
	pos := s.base + s.start
	return &Location{
		File: s.file,
		Path: s.path,
		Line: s.startLine,
		Col:  pos - s.startLinePos + 1,
		Pos:  pos,
	}
}

// Loc returns a Location referencing the current scanner position, the last
// position of the current token.
func (s *Scanner) Loc() *Location {
	line := s.line
	if s.c.C == '\n' && s.c.N > 0 {
		line--
	}
	return &Location{
		File: s.file,
		Path: s.path,
		Line: line,
		Pos:  s.base + s.pos,
	}
}

// ensure tries to make a complete rune available at next.  It reports whether
// any unscanned bytes remain in the window.
func (s *Scanner) ensure() bool {
	if s.readErr == nil && !utf8.FullRune(s.buf[s.next:]) {
		s.extend()
	}
	return s.next < len(s.buf)
}

// complete reports whether the bytes at next can be decoded without waiting
// for more input.
func (s *Scanner) complete() bool {
	return s.readErr != nil || utf8.FullRune(s.buf[s.next:])
}

func (s *Scanner) extend() {
	if s.start > 0 {
		n := copy(s.buf[:cap(s.buf)], s.buf[s.start:])
		s.buf = s.buf[:n]
		s.base += s.start
		s.pos -= s.start
		s.next -= s.start
		s.start = 0
	}
	s.fill()
}

func (s *Scanner) fill() {
	end := len(s.buf)
	if end == cap(s.buf) {
		return
	}
	n, err := io.ReadFull(s.r, s.buf[end:cap(s.buf)])
	s.buf = s.buf[:end+n]
	switch {
	case err == io.ErrUnexpectedEOF:
		s.readErr = io.EOF
	case err != nil:
		s.readErr = err
	}
}

// Rune contains a rune that read by Scanner.
type Rune struct {
	C rune
	N int
}

// IsRuneError returns true if Rune represents an invalid utf-8 sequence read
// by utf8.DecodeRune.
func (r Rune) IsRuneError() bool {
	return r.C == utf8.RuneError && r.N == 1
}
