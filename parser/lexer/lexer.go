// Copyright © 2018 The ELPS authors

// Package lexer converts WebAssembly text into a stream of structural tokens.
//
// The lexer knows only what is needed to find structure reliably: parens,
// atoms, string literals and the two comment forms.  Parens inside comments
// and strings are never reported as structure.
package lexer

import (
	"unicode"

	"github.com/luthersystems/watsum/parser/token"
)

type LexFn func(*Lexer) *token.Token

type Lexer struct {
	// Anomalies receives every recoverable problem found while lexing.
	Anomalies *token.Anomalies

	scanner      *token.Scanner
	lex          LexFn
	err          error
	open         *token.Location // start of the string or block comment being read
	commentDepth int
	pending      rune // '(' or ';' read inside a block comment at a window boundary
	escaped      bool // '\' read inside a string at a window boundary
	invalid      int  // invalid utf-8 sequences already recorded
}

func New(s *token.Scanner) *Lexer {
	lex := &Lexer{
		Anomalies: &token.Anomalies{},
		scanner:   s,
		lex:       (*Lexer).readToken,
	}
	return lex
}

// ReadToken returns the next token.  After an EOF or ERROR token every call
// returns another EOF or ERROR token.
func (lex *Lexer) ReadToken() *token.Token {
	return lex.lex(lex)
}

// Err returns the error behind the last ERROR token, if any.
func (lex *Lexer) Err() error {
	return lex.err
}

func (lex *Lexer) readToken() *token.Token {
	lex.skipWhitespace()
	if !lex.scanner.Accept(func(c rune) bool { return true }) {
		if lex.scanner.EOF() {
			return lex.emitEOF()
		}
		if err := lex.scanner.Err(); err != nil {
			return lex.emitError(err)
		}
		return lex.emitError(token.ErrTokenTooLong)
	}
	switch lex.scanner.Rune() {
	case '(':
		if lex.scanner.AcceptRune(';') {
			lex.open = lex.scanner.LocStart()
			lex.commentDepth = 1
			return lex.readBlockComment()
		}
		return lex.emitText(token.PAREN_L)
	case ')':
		return lex.emitText(token.PAREN_R)
	case ';':
		if lex.scanner.AcceptRune(';') {
			return lex.readLineComment()
		}
		return lex.emitText(token.ATOM)
	case '"':
		lex.open = lex.scanner.LocStart()
		return lex.readString()
	default:
		return lex.readAtom()
	}
}

func (lex *Lexer) resetState() {
	lex.lex = (*Lexer).readToken
}

func (lex *Lexer) emit(typ token.Type, text string) *token.Token {
	tok := &token.Token{
		Type:   typ,
		Text:   text,
		Source: lex.scanner.LocStart(),
	}
	lex.scanner.Ignore()
	return tok
}

func (lex *Lexer) emitText(typ token.Type) *token.Token {
	return lex.scanner.EmitToken(typ)
}

func (lex *Lexer) emitEOF() *token.Token {
	if n := lex.scanner.Invalid() - lex.invalid; n > 0 {
		lex.Anomalies.AddN(token.InvalidUTF8, n, nil)
		lex.invalid += n
	}
	return lex.emit(token.EOF, "")
}

func (lex *Lexer) emitError(err error) *token.Token {
	tok := lex.emit(token.ERROR, err.Error())
	lex.err = &token.LocationError{Err: err, Source: tok.Source}
	lex.lex = (*Lexer).readError
	return tok
}

func (lex *Lexer) readError() *token.Token {
	return lex.emit(token.ERROR, lex.err.Error())
}

// readAtom reads the remainder of an atom.  Atoms longer than the scanner
// window are emitted in pieces.
func (lex *Lexer) readAtom() *token.Token {
	lex.resetState()
	lex.scanner.AcceptSeq(isAtom)
	if lex.scanner.Len() == 0 {
		// the previous piece ended exactly at the window boundary
		return lex.readToken()
	}
	if lex.scanner.Full() {
		lex.lex = (*Lexer).readAtom
	}
	return lex.emitText(token.ATOM)
}

func (lex *Lexer) readLineComment() *token.Token {
	lex.resetState()
	lex.scanner.AcceptSeq(func(c rune) bool { return c != '\n' })
	if lex.scanner.Len() == 0 {
		return lex.readToken()
	}
	if lex.scanner.Full() {
		lex.lex = (*Lexer).readLineComment
	}
	return lex.emitText(token.COMMENT)
}

// readString reads a string literal following its opening quote.  A string
// left open at the end of a line or of the input is closed implicitly.
func (lex *Lexer) readString() *token.Token {
	lex.lex = (*Lexer).readString
	if lex.escaped {
		lex.escaped = false
		lex.scanner.Accept(notNewline)
	}
	for {
		lex.scanner.AcceptSeq(func(c rune) bool { return c != '"' && c != '\\' && c != '\n' })
		if lex.scanner.AcceptRune('\\') {
			if lex.scanner.Accept(notNewline) {
				continue
			}
			if lex.scanner.Full() {
				lex.escaped = true
				return lex.emitText(token.STRING)
			}
		}
		if lex.scanner.AcceptRune('"') {
			lex.resetState()
			return lex.emitText(token.STRING)
		}
		if lex.scanner.Full() {
			return lex.emitText(token.STRING)
		}
		if err := lex.scanner.Err(); err != nil {
			return lex.emitError(err)
		}
		lex.Anomalies.Add(token.UnterminatedString, lex.open)
		lex.resetState()
		return lex.emitText(token.STRING)
	}
}

// readBlockComment reads a nested (; ;) comment.  The opening delimiter has
// already been scanned and counted in commentDepth.
func (lex *Lexer) readBlockComment() *token.Token {
	lex.lex = (*Lexer).readBlockComment
	for lex.commentDepth > 0 {
		c := lex.pending
		lex.pending = 0
		if c == 0 {
			lex.scanner.AcceptSeq(func(c rune) bool { return c != '(' && c != ';' })
			switch {
			case lex.scanner.AcceptRune('('):
				c = '('
			case lex.scanner.AcceptRune(';'):
				c = ';'
			case lex.scanner.Full():
				return lex.emitText(token.COMMENT)
			default:
				return lex.endBlockComment()
			}
		}
		switch {
		case c == '(' && lex.scanner.AcceptRune(';'):
			lex.commentDepth++
		case c == ';' && lex.scanner.AcceptRune(')'):
			lex.commentDepth--
		case lex.scanner.Full():
			lex.pending = c
			return lex.emitText(token.COMMENT)
		}
	}
	lex.resetState()
	return lex.emitText(token.COMMENT)
}

func (lex *Lexer) endBlockComment() *token.Token {
	lex.commentDepth = 0
	if err := lex.scanner.Err(); err != nil {
		return lex.emitError(err)
	}
	lex.Anomalies.Add(token.UnterminatedComment, lex.open)
	lex.resetState()
	return lex.emitText(token.COMMENT)
}

func (lex *Lexer) skipWhitespace() {
	for {
		n := lex.scanner.AcceptSeqSpace()
		lex.scanner.Ignore()
		if n == 0 {
			return
		}
	}
}

func isAtom(c rune) bool {
	switch c {
	case '(', ')', '"', ';':
		return false
	}
	return !unicode.IsSpace(c)
}

func notNewline(c rune) bool {
	return c != '\n'
}
