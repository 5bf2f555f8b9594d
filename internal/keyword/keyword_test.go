package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIsCaseInsensitive(t *testing.T) {
	table := New(map[string]int{"SecRule": 1, "SecRuleEngine": 2, "SecAction": 3})

	v, ok := table.Lookup("secrule")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	name, ok := table.Canonical("SECRULEENGINE")
	assert.True(t, ok)
	assert.Equal(t, "SecRuleEngine", name)

	_, ok = table.Lookup("SecRul")
	assert.False(t, ok)
	assert.Equal(t, 3, table.Len())
}

func TestNamesAreSorted(t *testing.T) {
	table := New(map[string]bool{"rx": true, "beginsWith": true, "pm": true})
	assert.Equal(t, []string{"beginsWith", "pm", "rx"}, table.Names())
}

func TestSuggest(t *testing.T) {
	table := New(map[string]bool{"REQUEST_HEADERS": true, "REQUEST_HEADERS_NAMES": true, "ARGS": true})

	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "typo at the end", input: "REQUEST_HEADRS", expected: "REQUEST_HEADERS", ok: true},
		{name: "prefix of a name", input: "arg", expected: "ARGS", ok: true},
		{name: "nothing close", input: "XYZ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Suggest(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := New(map[string]int{"a1": 1})
	extended := base.With("b2", 2)

	_, ok := base.Lookup("b2")
	assert.False(t, ok)
	v, ok := extended.Lookup("B2")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
