package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		src      string
		value    any
		expected bool
	}{
		{"True", nil, true},
		{"False", "anything", false},
		{">0", float64(1), true},
		{">0", float64(0), false},
		{">0", "3", true},
		{">=2", float64(2), true},
		{"<10", float64(9), true},
		{"!=''", "", false},
		{"!=''", "x", true},
		{"=='value_1'", "value_1", true},
		{"=='value_1'", "value_2", false},
		{"value > 0", float64(5), true},
		{"len(value)>2", "abc", true},
		{"len(value)>2", "ab", false},
		{"len(value)>1", []any{"a", "b"}, true},
		{"bool(value)", "x", true},
		{"bool(value)", "", false},
		{"bool(value)", []any{}, false},
		{"value", float64(1), true},
		{"not value", "", true},
		{">0 and <10", float64(5), true},
		{">0 and <10", float64(12), false},
		{"<0 or >10", float64(12), true},
		{"(>0 and <5) or ==7", float64(7), true},
		{"value == True", true, true},
		{"value != True", false, true},
	}

	for _, test := range tests {
		pred, err := Parse(test.src)
		require.NoErrorf(t, err, "parse %q", test.src)

		actual, err := pred.Eval(test.value)
		require.NoErrorf(t, err, "eval %q against %v", test.src, test.value)
		assert.Equalf(t, test.expected, actual, "%q against %v", test.src, test.value)
	}
}

func TestParseRejectsNonBoolean(t *testing.T) {
	for _, src := range []string{
		"5",
		"'text'",
		"value +",
		"== ==",
		"import os",
		"len(other)",
		"'unterminated",
		"",
	} {
		_, err := Parse(src)
		assert.Errorf(t, err, "expected parse error for %q", src)
	}
}

func TestEvalComparisonTypeMismatch(t *testing.T) {
	pred := MustParse(">0")
	ok, err := pred.Eval([]any{"a"})
	assert.Error(t, err)
	assert.False(t, ok)
}
