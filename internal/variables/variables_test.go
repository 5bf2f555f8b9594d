package variables

import (
	"testing"

	"github.com/klyr/seclang/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) []Variable {
	t.Helper()
	vars, err := ParseList(raw)
	require.NoError(t, err)
	return vars
}

func render(vars []Variable) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.String())
	}
	return out
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single", input: "ARGS", expected: []string{"ARGS"}},
		{name: "case folded", input: "args|request_headers:User-Agent", expected: []string{"ARGS", "REQUEST_HEADERS:User-Agent"}},
		{name: "modifiers", input: "&ARGS|!ARGS:id", expected: []string{"&ARGS", "!ARGS:id"}},
		{name: "regex key with pipe", input: "ARGS:/^(a|b)$/|TX", expected: []string{"ARGS:/^(a|b)$/", "TX"}},
		{name: "xpath key", input: "XML:/*|ARGS", expected: []string{"XML:/*", "ARGS"}},
		{name: "quoted key", input: "REQUEST_COOKIES:'session'", expected: []string{"REQUEST_COOKIES:session"}},
		{name: "explicit addition", input: "+ARGS_NAMES", expected: []string{"ARGS_NAMES"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, render(mustParse(t, tt.input)))
		})
	}
}

func TestParseListErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    logging.ErrorKind
		message string
	}{
		{name: "unknown", input: "ARGZ", kind: logging.KindSyntax, message: "Unknown variable: ARGZ (did you mean ARGS?)"},
		{name: "key on scalar", input: "REQUEST_URI:foo", kind: logging.KindSyntax},
		{name: "empty item", input: "ARGS||TX", kind: logging.KindSyntax},
		{name: "bad key pattern", input: "ARGS:/(/", kind: logging.KindSemantic},
		{name: "unterminated pattern", input: "ARGS:/abc", kind: logging.KindSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseList(tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.kind, logging.AsCompileError(err).Kind, "got %v", err)
			if tt.message != "" {
				assert.Equal(t, tt.message, logging.AsCompileError(err).Message)
			}
		})
	}
}

func TestResolveDropsEqualEntries(t *testing.T) {
	out := Resolve(mustParse(t, "ARGS|REQUEST_HEADERS|!ARGS"))
	assert.Equal(t, []string{"REQUEST_HEADERS"}, render(out))
}

func TestResolveAnnotatesKeyExclusion(t *testing.T) {
	out := Resolve(mustParse(t, "REQUEST_HEADERS|!REQUEST_HEADERS:Cookie"))
	require.Len(t, out, 1)
	assert.Equal(t, "REQUEST_HEADERS", out[0].String())
	require.Len(t, out[0].KeyExclusions, 1)
	assert.Equal(t, ModNone, out[0].KeyExclusions[0].Modifier)
	assert.True(t, out[0].Excludes("cookie"))
	assert.False(t, out[0].Excludes("Host"))
}

func TestResolveRegexExclusion(t *testing.T) {
	out := Resolve(mustParse(t, "ARGS|!ARGS:/^utm_/"))
	require.Len(t, out, 1)
	assert.True(t, out[0].Excludes("utm_source"))
	assert.False(t, out[0].Excludes("q"))
}

func TestResolveKeepsCountWrapper(t *testing.T) {
	out := Resolve(mustParse(t, "&ARGS"))
	assert.Equal(t, []string{"&ARGS"}, render(out))

	out = Resolve(mustParse(t, "&REQUEST_HEADERS|!REQUEST_HEADERS:Host"))
	require.Len(t, out, 1)
	assert.Equal(t, ModCount, out[0].Modifier)
	assert.True(t, out[0].Excludes("host"))
}

func TestResolveExactCollectionIdentity(t *testing.T) {
	out := Resolve(mustParse(t, "ARGS_GET|!ARGS:id"))
	require.Len(t, out, 1)
	assert.Empty(t, out[0].KeyExclusions)
}

func TestResolveInertExclusion(t *testing.T) {
	out := Resolve(mustParse(t, "ARGS|!TX:foo"))
	assert.Equal(t, []string{"ARGS"}, render(out))
	assert.Empty(t, out[0].KeyExclusions)
}

func TestResolveDoesNotShareAnnotations(t *testing.T) {
	raw := mustParse(t, "ARGS|!ARGS:a")
	first := Resolve(raw)
	second := Resolve(raw)
	first[0].KeyExclusions[0].Key = "changed"
	assert.Equal(t, "a", second[0].KeyExclusions[0].Key)
	assert.Empty(t, raw[0].KeyExclusions)
}

func TestMerge(t *testing.T) {
	current := Resolve(mustParse(t, "ARGS|REQUEST_HEADERS"))
	update := mustParse(t, "ARGS|REQUEST_COOKIES|!ARGS:password")

	out := Merge(current, update)
	assert.Equal(t, []string{"ARGS", "REQUEST_HEADERS", "REQUEST_COOKIES"}, render(out))
	assert.True(t, out[0].Excludes("password"))

	out = Merge(current, mustParse(t, "!REQUEST_HEADERS"))
	assert.Equal(t, []string{"ARGS"}, render(out))
}
