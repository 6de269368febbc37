// Copyright © 2018 The ELPS authors

package lexer

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/luthersystems/watsum/parser/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input  string
		tokens []*token.Token
	}{
		{``, []*token.Token{
			testToken(token.EOF, ""),
		}},
		{`(module)`, []*token.Token{
			testToken(token.PAREN_L, "("),
			testToken(token.ATOM, "module"),
			testToken(token.PAREN_R, ")"),
			testToken(token.EOF, ""),
		}},
		{`(func $f (i32.load offset=4 align=2))`, []*token.Token{
			testToken(token.PAREN_L, "("),
			testToken(token.ATOM, "func"),
			testToken(token.ATOM, "$f"),
			testToken(token.PAREN_L, "("),
			testToken(token.ATOM, "i32.load"),
			testToken(token.ATOM, "offset=4"),
			testToken(token.ATOM, "align=2"),
			testToken(token.PAREN_R, ")"),
			testToken(token.PAREN_R, ")"),
			testToken(token.EOF, ""),
		}},
		{";; (func $fake)\n(func $real)", []*token.Token{
			testToken(token.COMMENT, ";; (func $fake)"),
			testToken(token.PAREN_L, "("),
			testToken(token.ATOM, "func"),
			testToken(token.ATOM, "$real"),
			testToken(token.PAREN_R, ")"),
			testToken(token.EOF, ""),
		}},
		{`(; a (; nested ;) b ;)x`, []*token.Token{
			testToken(token.COMMENT, "(; a (; nested ;) b ;)"),
			testToken(token.ATOM, "x"),
			testToken(token.EOF, ""),
		}},
		{`(;;) (; ;; ;)`, []*token.Token{
			testToken(token.COMMENT, "(;;)"),
			testToken(token.COMMENT, "(; ;; ;)"),
			testToken(token.EOF, ""),
		}},
		{`"a\"b" "(func $fake)" ""`, []*token.Token{
			testToken(token.STRING, `"a\"b"`),
			testToken(token.STRING, `"(func $fake)"`),
			testToken(token.STRING, `""`),
			testToken(token.EOF, ""),
		}},
		{`a;b 1.5e-3 -inf`, []*token.Token{
			testToken(token.ATOM, "a"),
			testToken(token.ATOM, ";"),
			testToken(token.ATOM, "b"),
			testToken(token.ATOM, "1.5e-3"),
			testToken(token.ATOM, "-inf"),
			testToken(token.EOF, ""),
		}},
		{`(data "\00\ff)(")`, []*token.Token{
			testToken(token.PAREN_L, "("),
			testToken(token.ATOM, "data"),
			testToken(token.STRING, `"\00\ff)("`),
			testToken(token.PAREN_R, ")"),
			testToken(token.EOF, ""),
		}},
	}
	for i, test := range tests {
		tokens := lexAll(t, test.input, token.DefaultWindowSize)
		for _, tok := range tokens {
			tok.Source = nil
		}
		if !reflect.DeepEqual(tokens, test.tokens) {
			t.Errorf("test %d: unexpected tokens for input", i)
			t.Logf("source:\n\t%s", test.input)
			t.Logf("tokens:")
			for _, tok := range tokens {
				t.Logf("\t%v", tok)
			}
		}
	}
}

func TestLexerLocations(t *testing.T) {
	tokens := lexAll(t, "(module\n  (func $a))", token.DefaultWindowSize)
	require.Len(t, tokens, 8)
	assert.Equal(t, 0, tokens[0].Source.Pos)
	assert.Equal(t, 10, tokens[2].Source.Pos)
	assert.Equal(t, "test:2:3", tokens[2].Source.String())
	assert.Equal(t, 18, tokens[5].Source.Pos)
	assert.Equal(t, 19, tokens[6].Source.Pos)
	assert.Equal(t, 20, tokens[7].Source.Pos)
}

func TestLexerAnomalies(t *testing.T) {
	tests := []struct {
		input  string
		counts map[token.AnomalyKind]int
		last   *token.Token // last token before EOF
	}{
		{`"abc`, map[token.AnomalyKind]int{token.UnterminatedString: 1}, testToken(token.STRING, `"abc`)},
		{"\"ab\ncd\"", map[token.AnomalyKind]int{token.UnterminatedString: 2}, testToken(token.STRING, `"`)},
		{`"ab\`, map[token.AnomalyKind]int{token.UnterminatedString: 1}, testToken(token.STRING, `"ab\`)},
		{`(; never closed (func $x)`, map[token.AnomalyKind]int{token.UnterminatedComment: 1},
			testToken(token.COMMENT, `(; never closed (func $x)`)},
		{`(; (; ;)`, map[token.AnomalyKind]int{token.UnterminatedComment: 1}, testToken(token.COMMENT, `(; (; ;)`)},
		{"$a\xff\xfe", map[token.AnomalyKind]int{token.InvalidUTF8: 2}, testToken(token.ATOM, "$a\xff\xfe")},
	}
	for i, test := range tests {
		lex := New(token.NewScanner("test", strings.NewReader(test.input)))
		var prev *token.Token
		for {
			tok := lex.ReadToken()
			require.NotEqual(t, token.ERROR, tok.Type, "test %d", i)
			if tok.Type == token.EOF {
				break
			}
			prev = tok
		}
		require.NotNil(t, prev, "test %d", i)
		prev.Source = nil
		assert.Equal(t, test.last, prev, "test %d", i)
		total := 0
		for kind, n := range test.counts {
			assert.Equal(t, n, lex.Anomalies.Count(kind), "test %d: %v", i, kind)
			total += n
		}
		assert.Equal(t, total, lex.Anomalies.Total(), "test %d", i)
	}
}

// Small windows force every construct to be split across refills.  The
// structure reported must not depend on the window size.
func TestLexerWindowIndependence(t *testing.T) {
	inputs := []string{
		";; a rather long line comment mentioning (func $fake)\n(func $real (call $x))",
		"(; block (; nested (func $ghost) ;) comment spanning the window ;) (func $b)",
		`(data "a long string with \"escapes\" and (parens) inside it") (func $c)`,
		"(func $an_extraordinarily_long_identifier_name_exceeding_windows (i64.store8))",
		"(;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;;) ;;;;;;;;;;;;;;;;;;;;\n(func)",
	}
	for i, input := range inputs {
		want := mergeChunks(lexAll(t, input, token.DefaultWindowSize))
		for size := 4; size <= 16; size++ {
			got := mergeChunks(lexAll(t, input, size))
			if !assert.Equal(t, want, got, "input %d window %d", i, size) {
				return
			}
		}
	}
}

func TestLexerReadError(t *testing.T) {
	failure := errors.New("device unplugged")
	r := io.MultiReader(strings.NewReader("(func $a"), &errReader{failure})
	lex := New(token.NewScanner("test", r))
	var last *token.Token
	for i := 0; i < 10; i++ {
		last = lex.ReadToken()
		if last.Type == token.ERROR {
			break
		}
	}
	require.Equal(t, token.ERROR, last.Type)
	assert.ErrorIs(t, lex.Err(), failure)
	assert.Equal(t, token.ERROR, lex.ReadToken().Type)
}

func TestStream(t *testing.T) {
	s := Open("test", strings.NewReader("(func $a)"))
	assert.Nil(t, s.Token())
	assert.Equal(t, token.PAREN_L, s.Peek().Type)
	require.True(t, s.Scan())
	assert.Equal(t, token.PAREN_L, s.Token().Type)
	assert.True(t, s.Peek().Is("func"))
	var texts []string
	for s.Scan() {
		texts = append(texts, s.Token().Text)
	}
	assert.Equal(t, []string{"func", "$a", ")"}, texts)
	assert.Equal(t, token.EOF, s.Token().Type)
	assert.False(t, s.Scan())
	assert.NoError(t, s.Err())
	assert.Zero(t, s.Anomalies().Total())
}

func TestStreamError(t *testing.T) {
	failure := errors.New("device unplugged")
	s := Open("test", io.MultiReader(strings.NewReader("(a"), &errReader{failure}))
	for s.Scan() {
	}
	assert.Equal(t, token.ERROR, s.Token().Type)
	assert.ErrorIs(t, s.Err(), failure)
}

type errReader struct{ err error }

func (r *errReader) Read(b []byte) (int, error) { return 0, r.err }

func lexAll(t *testing.T, input string, window int) []*token.Token {
	t.Helper()
	lex := New(token.NewScannerSize("test", strings.NewReader(input), window))
	var tokens []*token.Token
	for {
		tok := lex.ReadToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF || tok.Type == token.ERROR {
			return tokens
		}
		if len(tokens) > 100000 {
			t.Fatalf("apparent infinite scanning loop for %q", input)
		}
	}
}

// mergeChunks joins contiguous tokens of the same non-paren type.
func mergeChunks(tokens []*token.Token) []string {
	var out []string
	var prev *token.Token
	end := -1
	for _, tok := range tokens {
		contiguous := prev != nil && tok.Type == prev.Type && tok.Source.Pos == end &&
			tok.Type != token.PAREN_L && tok.Type != token.PAREN_R
		if contiguous {
			out[len(out)-1] += tok.Text
		} else {
			out = append(out, fmt.Sprintf("%v ", tok.Type)+tok.Text)
		}
		prev = tok
		end = tok.Source.Pos + len(tok.Text)
	}
	return out
}

func testToken(typ token.Type, text string) *token.Token {
	return &token.Token{
		Type: typ,
		Text: text,
	}
}
