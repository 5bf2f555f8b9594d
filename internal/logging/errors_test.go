package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *CompileError
		expected string
	}{
		{
			name:     "without location",
			err:      Syntaxf("Unknown directive: %s", "SecFoo"),
			expected: "SYNTAX: Unknown directive: SecFoo",
		},
		{
			name:     "with location",
			err:      Semanticf("Rules must have an ID.").At("rules.conf", 7),
			expected: "rules.conf:7: SEMANTIC: Rules must have an ID.",
		},
		{
			name:     "unsupported keeps feature",
			err:      Unsupportedf("SecHashEngine", "SecHashEngine is not supported.").At("a.conf", 2),
			expected: "a.conf:2: UNSUPPORTED(SecHashEngine): SecHashEngine is not supported.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAtKeepsFirstLocation(t *testing.T) {
	err := Semanticf("boom").At("inner.conf", 3).At("outer.conf", 10)
	assert.Equal(t, "inner.conf", err.File)
	assert.Equal(t, 3, err.Line)
}

func TestAsCompileError(t *testing.T) {
	cause := Unsupportedf("rsub", "not supported")
	wrapped := fmt.Errorf("directive: %w", cause)
	assert.Same(t, cause, AsCompileError(wrapped))
	assert.Equal(t, KindUnsupported, AsCompileError(wrapped).Kind)

	plain := errors.New("plain failure")
	converted := AsCompileError(plain)
	assert.Equal(t, KindSemantic, converted.Kind)
	assert.Equal(t, plain, converted.Unwrap())
	assert.Nil(t, AsCompileError(nil))
}

func TestDiagnosticsAggregate(t *testing.T) {
	var diags Diagnostics
	require.NoError(t, diags.Err())

	diags.Add(Syntaxf("first").At("a.conf", 1))
	diags.Add(nil)
	diags.Add(Semanticf("second").At("a.conf", 2))
	diags.Add(Semanticf("third").At("a.conf", 3))

	assert.Equal(t, 3, diags.Len())
	assert.Equal(t, map[ErrorKind]int{KindSyntax: 1, KindSemantic: 2}, diags.Counts())

	err := diags.Err()
	var agg *CompileErrors
	require.ErrorAs(t, err, &agg)
	assert.Equal(t, "3 compile error(s)", agg.Error())
	assert.Equal(t, []string{
		"a.conf:1: SYNTAX: first",
		"a.conf:2: SEMANTIC: second",
		"a.conf:3: SEMANTIC: third",
	}, agg.Problems)
}

func TestLogErrorEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	err := Unsupportedf("geoLookup", "geolocation unavailable").At("geo.conf", 9)
	LogError(logger, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	assert.Equal(t, "error", fields["level"])
	assert.Equal(t, "UNSUPPORTED", fields["kind"])
	assert.Equal(t, "geo.conf", fields["file"])
	assert.Equal(t, float64(9), fields["line"])
	assert.Equal(t, "geoLookup", fields["feature"])
	assert.Equal(t, "geolocation unavailable", fields["message"])
}

func TestConfigureWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ConfigureWriter("debug", "json", &buf))
	Logger.Debug().Str("directive", "SecRule").Msg("compiled")
	assert.Contains(t, buf.String(), `"directive":"SecRule"`)

	assert.Error(t, ConfigureWriter("loud", "json", &buf))
	assert.Error(t, ConfigureWriter("info", "xml", &buf))
	require.NoError(t, ConfigureWriter("info", "json", &buf))
}
