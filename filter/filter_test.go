// Copyright © 2024 The ELPS authors

package filter

import (
	"testing"

	"github.com/luthersystems/watsum/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text  string
		conds []Cond
	}{
		{"loads>=10", []Cond{{"loads", ">=", 10}}},
		{" calls > 0 ", []Cond{{"calls", ">", 0}}},
		{"loads>=10, calls>0", []Cond{{"loads", ">=", 10}, {"calls", ">", 0}}},
		{"stores<3 && branches!=2", []Cond{{"stores", "<", 3}, {"branches", "!=", 2}}},
		{"flagged>0 and import=false", []Cond{{"flagged", ">", 0}, {"import", "=", 0}}},
		{"lines<=40,import==true", []Cond{{"lines", "<=", 40}, {"import", "==", 1}}},
	}
	for i, test := range tests {
		expr, err := Parse(test.text)
		if !assert.NoError(t, err, "test %d: %q", i, test.text) {
			continue
		}
		assert.Equal(t, test.conds, expr.Conds, "test %d: %q", i, test.text)
	}
}

func TestParseBlank(t *testing.T) {
	expr, err := Parse("  ")
	require.NoError(t, err)
	assert.Nil(t, expr)
	assert.True(t, expr.Match(&metrics.Metrics{}))
	assert.Equal(t, "", expr.String())
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"loads",
		"loads>",
		">3",
		"loads>=x",
		"size>3",
		"loads>1 calls>2",
		"loads>1 or calls>2",
	} {
		_, err := Parse(text)
		assert.Error(t, err, "%q", text)
	}
}

func TestMatch(t *testing.T) {
	m := &metrics.Metrics{
		Loads:        12,
		Calls:        3,
		FlaggedCalls: []string{"drawArrays"},
		BodyLines:    20,
	}
	tests := []struct {
		text  string
		match bool
	}{
		{"loads>=10", true},
		{"loads>=10, calls>3", false},
		{"flagged=1 && lines<21", true},
		{"import=0", true},
		{"import=true", false},
		{"stores!=0", false},
		{"branches<1", true},
	}
	for _, test := range tests {
		expr, err := Parse(test.text)
		require.NoError(t, err, test.text)
		assert.Equal(t, test.match, expr.Match(m), test.text)
	}
}

func TestString(t *testing.T) {
	expr, err := Parse("loads >= 10 and calls>0")
	require.NoError(t, err)
	assert.Equal(t, "loads>=10, calls>0", expr.String())
}
