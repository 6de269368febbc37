// Copyright © 2018 The ELPS authors

package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeString(t *testing.T) {
	used := make(map[string]bool)
	for tok := Type(0); tok < numTokenTypes; tok++ {
		str := tok.String()
		t.Log(str)
		if str == "" {
			t.Errorf("token type %x has empty string value", tok)
			continue
		}
		if used[str] {
			t.Errorf("token type string used twice: %v", tok)
		}
		used[str] = true
	}
}

func TestLocationError(t *testing.T) {
	cause := errors.New("boom")
	err := &LocationError{Err: cause, Source: &Location{File: "a.wat", Line: 3, Col: 7}}
	assert.Equal(t, "a.wat:3:7: boom", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAnomalies(t *testing.T) {
	var a Anomalies
	assert.Zero(t, a.Total())
	a.Add(UnclosedFunc, &Location{File: "x", Line: 9})
	a.AddN(InvalidUTF8, 3, nil)
	a.AddN(UnmatchedClose, 0, nil)
	assert.Equal(t, 4, a.Total())
	assert.Equal(t, 3, a.Count(InvalidUTF8))
	assert.Equal(t, []AnomalyKind{InvalidUTF8, UnclosedFunc}, a.Kinds())
	assert.Equal(t, "4 (invalid utf-8: 3, unclosed function: 1)", a.String())
	assert.Len(t, a.Samples(), 2)

	for i := 0; i < 2*MaxAnomalySamples; i++ {
		a.Add(UnterminatedString, nil)
	}
	assert.Len(t, a.Samples(), MaxAnomalySamples)
	assert.Equal(t, 2*MaxAnomalySamples, a.Count(UnterminatedString))

	var nilSet *Anomalies
	assert.Zero(t, nilSet.Total())
	assert.Nil(t, nilSet.Kinds())
}
