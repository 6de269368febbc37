// Copyright © 2024 The ELPS authors

package lexer

import (
	"io"

	"github.com/luthersystems/watsum/parser/token"
)

var _ token.Source = (*Stream)(nil)

// Stream adapts a Lexer to token.Source.  Scan returns false once the EOF
// token or an ERROR token has been read; Err distinguishes the two.
type Stream struct {
	lex  *Lexer
	tok  *token.Token
	next *token.Token
}

// NewStream returns a Stream reading tokens from lex.
func NewStream(lex *Lexer) *Stream {
	return &Stream{lex: lex}
}

// Open returns a Stream over r using a scanner window of the default size.
func Open(name string, r io.Reader) *Stream {
	return NewStream(New(token.NewScanner(name, r)))
}

func (s *Stream) Token() *token.Token {
	return s.tok
}

func (s *Stream) Peek() *token.Token {
	if s.next == nil {
		s.next = s.lex.ReadToken()
	}
	return s.next
}

func (s *Stream) Scan() bool {
	if s.done() {
		return false
	}
	if s.next != nil {
		s.tok, s.next = s.next, nil
	} else {
		s.tok = s.lex.ReadToken()
	}
	return !s.done()
}

// Err returns the read error that terminated the stream, if any.
func (s *Stream) Err() error {
	return s.lex.Err()
}

// Anomalies returns the anomalies recorded by the underlying lexer.
func (s *Stream) Anomalies() *token.Anomalies {
	return s.lex.Anomalies
}

func (s *Stream) done() bool {
	return s.tok != nil && (s.tok.Type == token.EOF || s.tok.Type == token.ERROR)
}
