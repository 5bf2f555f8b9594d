package actions

import (
	"strings"
	"testing"

	"github.com/klyr/seclang/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(list []Action) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.String())
	}
	return out
}

func TestParseListQuoting(t *testing.T) {
	list, err := ParseList(`id:942100,phase:2,msg:'SQL Injection, detected via libinjection',tag:'attack-sqli',logdata:'it\'s %{MATCHED_VAR}',deny`)
	require.NoError(t, err)
	require.Len(t, list, 6)

	assert.Equal(t, int64(942100), list[0].Number)
	assert.Equal(t, int64(2), list[1].Number)
	assert.Equal(t, "SQL Injection, detected via libinjection", list[2].Param)
	assert.Equal(t, "attack-sqli", list[3].Param)
	assert.Equal(t, "it's %{MATCHED_VAR}", list[4].Param)
	assert.True(t, list[4].Value.HasMacros())
	assert.Equal(t, Disruptive, list[5].Kind)
}

func TestKindsAreFixedByKeyword(t *testing.T) {
	tests := []struct {
		item  string
		kind  Kind
		stage Stage
	}{
		{"deny", Disruptive, OnlyIfMatch},
		{"block", Disruptive, OnlyIfMatch},
		{"redirect:https://example.com/", Disruptive, OnlyIfMatch},
		{"id:1", Meta, Configuration},
		{"chain", Meta, Configuration},
		{"msg:hello", Meta, OnlyIfMatch},
		{"severity:CRITICAL", Meta, OnlyIfMatch},
		{"ctl:ruleEngine=Off", Control, OnlyIfMatch},
		{"t:lowercase", Transformation, BeforeMatch},
		{"T:URLDECODEUNI", Transformation, BeforeMatch},
	}

	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			list, err := ParseList(tt.item)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, tt.kind, list[0].Kind)
			assert.Equal(t, tt.stage, list[0].Stage)
		})
	}
}

func TestValueParsing(t *testing.T) {
	tests := []struct {
		item   string
		number int64
		param  string
	}{
		{item: "phase:request", number: 2},
		{item: "phase:RESPONSE", number: 4},
		{item: "phase:logging", number: 5},
		{item: "phase:3", number: 3},
		{item: "severity:'WARNING'", number: 4},
		{item: "severity:2", number: 2},
		{item: "status:403", number: 403},
		{item: "skip:2", number: 2},
		{item: "accuracy:8", number: 8},
		{item: "t:urldecodeuni", param: "urlDecodeUni"},
	}

	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			list, err := ParseList(tt.item)
			require.NoError(t, err)
			assert.Equal(t, tt.number, list[0].Number)
			if tt.param != "" {
				assert.Equal(t, tt.param, list[0].Param)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    logging.ErrorKind
		message string
	}{
		{name: "unknown action", input: "id:1,denyy", kind: logging.KindSyntax, message: "Unknown action: denyy (did you mean deny?)"},
		{name: "bad id", input: "id:abc", kind: logging.KindSemantic, message: `The input "abc" does not seem to be a valid rule id.`},
		{name: "zero id", input: "id:0", kind: logging.KindSemantic},
		{name: "bad phase", input: "phase:7", kind: logging.KindSyntax, message: "Unknown phase: 7"},
		{name: "bad severity", input: "severity:LOUD", kind: logging.KindSyntax},
		{name: "bad transformation", input: "t:rot13", kind: logging.KindSyntax, message: "Unknown transformation: rot13"},
		{name: "missing argument", input: "msg", kind: logging.KindSyntax},
		{name: "unexpected argument", input: "deny:now", kind: logging.KindSyntax},
		{name: "unterminated quote", input: "msg:'oops", kind: logging.KindSyntax},
		{name: "unsupported proxy", input: "proxy:http://backend", kind: logging.KindUnsupported},
		{name: "unsupported sanitise", input: "sanitiseArg:password", kind: logging.KindUnsupported},
		{name: "bad ctl", input: "ctl:ruleEngine=Maybe", kind: logging.KindSyntax},
		{name: "unknown ctl", input: "ctl:debugLogLevel=9", kind: logging.KindSyntax},
		{name: "setvar without key", input: "setvar:tx", kind: logging.KindSyntax},
		{name: "setvar read-only collection", input: "setvar:args.x=1", kind: logging.KindSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseList(tt.input)
			require.Error(t, err)
			cerr := logging.AsCompileError(err)
			assert.Equal(t, tt.kind, cerr.Kind, cerr.Message)
			if tt.message != "" {
				assert.Equal(t, tt.message, cerr.Message)
			}
		})
	}
}

func TestUnsupportedNamesFeature(t *testing.T) {
	_, err := New("prepend", "x")
	require.Error(t, err)
	assert.Equal(t, "prepend", logging.AsCompileError(err).Feature)
}

func TestSetVar(t *testing.T) {
	tests := []struct {
		item       string
		op         SetVarOp
		collection string
		key        string
		value      string
	}{
		{"setvar:tx.score=5", SetVarSet, "TX", "score", "5"},
		{"setvar:'tx.anomaly_score_pl1=+%{tx.critical_anomaly_score}'", SetVarSum, "TX", "anomaly_score_pl1", "%{TX.critical_anomaly_score}"},
		{"setvar:ip.reput=-1", SetVarSubtract, "IP", "reput", "1"},
		{"setvar:tx.flag", SetVarSetToOne, "TX", "flag", ""},
		{"setvar:!tx.flag", SetVarUnset, "TX", "flag", ""},
		{"setvar:'tx.%{rule.id}-WEB=%{matched_var}'", SetVarSet, "TX", "%{RULE.id}-WEB", "%{MATCHED_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.item, func(t *testing.T) {
			list, err := ParseList(tt.item)
			require.NoError(t, err)
			sv := list[0].SetVar
			require.NotNil(t, sv)
			assert.Equal(t, tt.op, sv.Op)
			assert.Equal(t, tt.collection, sv.Collection)
			assert.Equal(t, tt.key, sv.Key.String())
			assert.Equal(t, tt.value, sv.Value.String())
		})
	}
}

func TestCtl(t *testing.T) {
	list, err := ParseList("ctl:ruleRemoveTargetById=942100;ARGS:password,ctl:ruleRemoveById=1000-1999,ctl:requestbodyprocessor=json,ctl:auditLogParts=+E")
	require.NoError(t, err)
	require.Len(t, list, 4)

	assert.Equal(t, "ruleRemoveTargetById", list[0].Ctl.Option)
	assert.Equal(t, []IDRange{{From: 942100, To: 942100}}, list[0].Ctl.IDs)
	require.Len(t, list[0].Ctl.Targets, 1)
	assert.Equal(t, "ARGS:password", list[0].Ctl.Targets[0].String())

	assert.True(t, AnyContains(list[1].Ctl.IDs, 1500))
	assert.False(t, AnyContains(list[1].Ctl.IDs, 2000))

	assert.Equal(t, "requestBodyProcessor", list[2].Ctl.Option)
	assert.Equal(t, "JSON", list[2].Ctl.Value)
	assert.Equal(t, "auditLogParts", list[3].Ctl.Option)
}

func TestPartitionPreservesOrder(t *testing.T) {
	list, err := ParseList("t:none,id:1,t:lowercase,phase:2,t:urlDecodeUni,deny")
	require.NoError(t, err)

	transformations, acts := Partition(list)
	assert.Equal(t, []string{"t:none", "t:lowercase", "t:urlDecodeUni"}, names(transformations))
	assert.Equal(t, []string{"id:1", "phase:2", "deny"}, names(acts))
	for _, a := range acts {
		assert.NotEqual(t, Transformation, a.Kind)
	}
	assert.True(t, transformations[0].IsNone())
}

func TestFindHelpers(t *testing.T) {
	list, err := ParseList("tag:a,pass,tag:b,deny")
	require.NoError(t, err)

	d, ok := FindDisruptive(list)
	assert.True(t, ok)
	assert.Equal(t, "deny", d.Name)

	tag, ok := Find(list, "TAG")
	assert.True(t, ok)
	assert.Equal(t, "b", tag.Param)
	assert.Len(t, FindAll(list, "tag"), 2)

	_, ok = Find(list, "msg")
	assert.False(t, ok)
}

func TestParseIDRanges(t *testing.T) {
	ranges, err := ParseIDRanges("1 2,10-20")
	require.NoError(t, err)
	assert.Equal(t, []IDRange{{1, 1}, {2, 2}, {10, 20}}, ranges)
	assert.Equal(t, "10-20", ranges[2].String())

	_, err = ParseIDRanges("20-10")
	assert.Error(t, err)
	_, err = ParseIDRanges("abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"abc"`)
	_, err = ParseIDRanges("")
	assert.Error(t, err)
}

func TestTransformationNames(t *testing.T) {
	names := TransformationNames()
	assert.Contains(t, names, "none")
	assert.Contains(t, names, "htmlEntityDecode")
}

func TestStringQuotesParamsThatParseBack(t *testing.T) {
	list, err := ParseList(`msg:'it\'s bad',tag:'a, b',logdata:plain`)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "it's bad", list[0].Param)

	rendered := names(list)
	assert.Equal(t, []string{`msg:'it\'s bad'`, "tag:'a, b'", "logdata:plain"}, rendered)

	again, err := ParseList(strings.Join(rendered, ","))
	require.NoError(t, err)
	assert.Equal(t, rendered, names(again))
	assert.Equal(t, "it's bad", again[0].Param)
}
