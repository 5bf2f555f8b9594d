package runtimestring

import (
	"encoding/json"
	"testing"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderKeepsSourceOrder(t *testing.T) {
	tx, err := variables.New("TX", "anomaly_score")
	require.NoError(t, err)

	r := NewText("abc").AppendVar(tx).AppendText("def").Build()
	frags := r.Fragments()
	require.Len(t, frags, 3)
	assert.Equal(t, "abc", frags[0].Literal)
	assert.Equal(t, "TX", frags[1].Var.Collection)
	assert.Equal(t, "anomaly_score", frags[1].Var.Key)
	assert.Equal(t, "def", frags[2].Literal)
	assert.Equal(t, "abc%{TX.anomaly_score}def", r.String())
}

func TestBuilderOwnsVariables(t *testing.T) {
	v, err := variables.New("TX", "a")
	require.NoError(t, err)
	b := NewVar(v)
	v.Key = "b"
	r := b.Build()
	assert.Equal(t, "a", r.Fragments()[0].Var.Key)

	// the builder is empty after Build
	assert.Empty(t, b.Build().Fragments())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		frags   int
		macros  bool
		printed string
	}{
		{name: "literal", input: "SQL Injection Attack", frags: 1, printed: "SQL Injection Attack"},
		{name: "macro only", input: "%{MATCHED_VAR}", frags: 1, macros: true, printed: "%{MATCHED_VAR}"},
		{name: "mixed", input: "Matched Data: %{TX.0} found within %{MATCHED_VAR_NAME}: %{MATCHED_VAR}", frags: 6, macros: true},
		{name: "lowercase collection", input: "%{tx.critical_anomaly_score}", frags: 1, macros: true, printed: "%{TX.critical_anomaly_score}"},
		{name: "unterminated", input: "100%{ off", frags: 1, printed: "100%{ off"},
		{name: "empty", input: "", frags: 0, printed: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Len(t, r.Fragments(), tt.frags)
			assert.Equal(t, tt.macros, r.HasMacros())
			if tt.printed != "" || tt.input == "" {
				assert.Equal(t, tt.printed, r.String())
			}
		})
	}
}

func TestParseRejectsUnknownMacro(t *testing.T) {
	_, err := Parse("value %{NOPE.x}")
	require.Error(t, err)
	assert.Equal(t, logging.KindSyntax, logging.AsCompileError(err).Kind)

	_, err = Parse("%{}")
	require.Error(t, err)
}

func TestLiteral(t *testing.T) {
	text, ok := MustParse("plain").Literal()
	assert.True(t, ok)
	assert.Equal(t, "plain", text)

	_, ok = MustParse("%{REMOTE_ADDR}").Literal()
	assert.False(t, ok)
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Msg *RunTimeString `json:"msg"`
	}{Msg: MustParse("score %{TX.score}")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"msg":"score %{TX.score}"}`, string(data))
}
