package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/operators"
	"github.com/klyr/seclang/internal/variables"
)

func mustActions(t *testing.T, raw string) []actions.Action {
	t.Helper()
	list, err := actions.ParseList(raw)
	require.NoError(t, err)
	return list
}

func mustRule(t *testing.T, vars, op, acts string) *Rule {
	t.Helper()
	parsed, err := variables.ParseList(vars)
	require.NoError(t, err)
	operator, err := operators.Parse(op, "rules.conf")
	require.NoError(t, err)
	r, err := NewConditional(parsed, operator, mustActions(t, acts), "rules.conf", 1)
	require.NoError(t, err)
	return r
}

func names(list []actions.Action) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.String())
	}
	return out
}

func TestNewConditionalPartitionsInterleavedActions(t *testing.T) {
	r := mustRule(t, "ARGS", "@rx attack", "t:lowercase,id:1,phase:2,deny")

	assert.Equal(t, Conditional, r.Kind)
	require.Len(t, r.Variables, 1)
	assert.Equal(t, "ARGS", r.Variables[0].Collection)
	assert.Equal(t, operators.Rx, r.Operator.Kind)
	assert.Equal(t, "attack", r.Operator.Param)
	assert.Equal(t, []string{"t:lowercase"}, names(r.Transformations))
	assert.Equal(t, []string{"id:1", "phase:2", "deny"}, names(r.Actions))
	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, int64(2), r.Phase)

	other := mustRule(t, "ARGS", "@rx attack", "id:1,t:lowercase,deny,phase:2")
	assert.Equal(t, names(r.Transformations), names(other.Transformations))
	assert.Equal(t, []string{"id:1", "deny", "phase:2"}, names(other.Actions))
}

func TestNewConditionalDerivesMetadata(t *testing.T) {
	r := mustRule(t, "REQUEST_HEADERS|!REQUEST_HEADERS:User-Agent", "@pm evil",
		"id:7,msg:'bad agent',tag:a,tag:b,severity:CRITICAL,rev:2,ver:'x/1',maturity:3,accuracy:4,logdata:%{MATCHED_VAR}")

	assert.Equal(t, "bad agent", r.Msg)
	assert.Equal(t, []string{"a", "b"}, r.Tags)
	assert.Equal(t, int64(2), r.Severity)
	assert.Equal(t, "2", r.Rev)
	assert.Equal(t, "x/1", r.Ver)
	assert.Equal(t, int64(3), r.Maturity)
	assert.Equal(t, int64(4), r.Accuracy)
	assert.Equal(t, "%{MATCHED_VAR}", r.LogData)
	assert.Equal(t, int64(DefaultPhase), r.Phase)

	require.Len(t, r.Variables, 1)
	require.Len(t, r.Variables[0].KeyExclusions, 1)
	assert.True(t, r.Variables[0].Excludes("user-agent"))
}

func TestNewConditionalRejectsFullyExcludedTargets(t *testing.T) {
	vars, err := variables.ParseList("ARGS|!ARGS")
	require.NoError(t, err)
	op, err := operators.Parse("@rx a", "")
	require.NoError(t, err)

	_, err = NewConditional(vars, op, nil, "f", 1)
	require.Error(t, err)
	assert.Equal(t, logging.KindSemantic, logging.AsCompileError(err).Kind)
}

type fakeLoader struct {
	paths []string
	err   error
}

func (f *fakeLoader) Load(path string) error {
	f.paths = append(f.paths, path)
	return f.err
}

func TestNewScript(t *testing.T) {
	loader := &fakeLoader{}
	r, err := NewScript("scripts/check.lua", mustActions(t, "id:9,block"), "/etc/rules/main.conf", 3, loader)
	require.NoError(t, err)
	assert.Equal(t, Script, r.Kind)
	assert.Equal(t, filepath.Join("/etc/rules", "scripts/check.lua"), r.ScriptPath)
	assert.Equal(t, []string{r.ScriptPath}, loader.paths)

	loader.err = errors.New("syntax error near end")
	_, err = NewScript("bad.lua", nil, "main.conf", 4, loader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to load script: syntax error near end")
}

func TestRuleSetRequiresIDs(t *testing.T) {
	rs := NewRuleSet()
	err := rs.AddRule(mustRule(t, "ARGS", "@rx a", "deny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rules must have an ID")

	require.NoError(t, rs.AddRule(mustRule(t, "ARGS", "@rx a", "id:1,deny")))
	err = rs.AddRule(mustRule(t, "ARGS", "@rx b", "id:1,deny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rule id: 1 is duplicated")
	assert.Len(t, rs.Rules(), 1)
}

func TestRuleSetChains(t *testing.T) {
	rs := NewRuleSet()
	require.NoError(t, rs.AddRule(mustRule(t, "ARGS", "@rx a", "id:10,phase:1,chain,deny")))
	require.NotNil(t, rs.OpenChain())

	err := rs.AddRule(mustRule(t, "ARGS", "@rx b", "deny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Disruptive actions can only be specified by chain starter rules.")

	require.NoError(t, rs.AddRule(mustRule(t, "ARGS", "@rx b", "chain")))
	require.NoError(t, rs.AddRule(mustRule(t, "ARGS", "@rx c", "t:none")))
	assert.Nil(t, rs.OpenChain())

	require.Len(t, rs.Rules(), 1)
	starter := rs.Rules()[0]
	var phases []int64
	starter.Walk(func(r *Rule) { phases = append(phases, r.Phase) })
	assert.Equal(t, []int64{1, 1, 1}, phases)
}

func TestMarkersCloseChains(t *testing.T) {
	rs := NewRuleSet()
	require.NoError(t, rs.AddRule(mustRule(t, "ARGS", "@rx a", "id:1,chain")))
	require.NoError(t, rs.AddMarker(`"END_CHECKS"`, "f.conf", 2))
	assert.Nil(t, rs.OpenChain())
	assert.Equal(t, []string{"END_CHECKS"}, rs.Markers())
	assert.Len(t, rs.Active(), 1)
}

func TestDefaultActions(t *testing.T) {
	rs := NewRuleSet()
	require.NoError(t, rs.SetDefaultActions(mustActions(t, "phase:2,log,auditlog,t:lowercase,deny")))
	assert.Equal(t, []string{"log", "auditlog", "t:lowercase", "deny"}, names(rs.DefaultActions(2)))

	err := rs.SetDefaultActions(mustActions(t, "phase:2,log,pass"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placed once per phase")

	err = rs.SetDefaultActions(mustActions(t, "phase:3,log,block"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must specify a disruptive action")

	err = rs.SetDefaultActions(mustActions(t, "phase:3,t:none,deny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The transformation none is not suitable")

	err = rs.SetDefaultActions(mustActions(t, "phase:3,id:4,deny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The action 'id' is not suitable")

	require.NoError(t, rs.SetDefaultActions(mustActions(t, "pass")))
	assert.Equal(t, []int64{1, 2}, rs.DefaultPhases())
}

func TestDefaultActionsDuplicateNamesParsedPhase(t *testing.T) {
	rs := NewRuleSet()
	require.NoError(t, rs.SetDefaultActions(mustActions(t, "phase:2,deny")))

	err := rs.SetDefaultActions(mustActions(t, "phase:request,deny"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Phase 2 was informed already.")

	require.NoError(t, rs.SetDefaultActions(mustActions(t, "deny")))
	err = rs.SetDefaultActions(mustActions(t, "pass"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Phase 1 was informed already.")
}

func TestEffectiveActions(t *testing.T) {
	rs := NewRuleSet()
	require.NoError(t, rs.SetDefaultActions(mustActions(t, "phase:2,log,t:urlDecode,pass")))

	own := mustRule(t, "ARGS", "@rx a", "id:1,t:lowercase,deny")
	assert.Equal(t, []string{"log", "id:1", "deny"}, names(rs.EffectiveActions(own)))
	assert.Equal(t, []string{"t:urlDecode", "t:lowercase"}, names(rs.EffectiveTransformations(own)))

	inherit := mustRule(t, "ARGS", "@rx a", "id:2,t:none,t:trim")
	assert.Equal(t, []string{"log", "pass", "id:2"}, names(rs.EffectiveActions(inherit)))
	assert.Equal(t, []string{"t:trim"}, names(rs.EffectiveTransformations(inherit)))
}

func TestPublishFreezes(t *testing.T) {
	rs := NewRuleSet()
	require.NoError(t, rs.AddRule(mustRule(t, "ARGS", "@rx a", "id:1,deny")))
	require.NoError(t, rs.Publish())
	assert.NotEmpty(t, rs.ID)
	assert.True(t, rs.Published())

	assert.ErrorIs(t, rs.AddRule(mustRule(t, "ARGS", "@rx a", "id:2,deny")), ErrPublished)
	assert.ErrorIs(t, rs.AddUnconditionalRule(NewUnconditional(mustActions(t, "id:3,pass"), "f", 1)), ErrPublished)
	assert.ErrorIs(t, rs.AddMarker("M", "f", 1), ErrPublished)
	assert.ErrorIs(t, rs.SetDefaultActions(mustActions(t, "deny")), ErrPublished)
	assert.ErrorIs(t, rs.Exceptions.LoadRemoveByID("1", "f", 1), ErrPublished)
	_, err := rs.Exceptions.Apply(rs)
	assert.ErrorIs(t, err, ErrPublished)
	assert.ErrorIs(t, rs.Publish(), ErrPublished)
}

func TestDetails(t *testing.T) {
	r := mustRule(t, "ARGS", "@rx a", "id:942100,rev:3,msg:'SQL Injection',severity:2,tag:sqli,tag:crs")
	r.File, r.Line = "crs.conf", 12
	assert.Equal(t,
		`[file "crs.conf"] [line "12"] [id "942100"] [rev "3"] [msg "SQL Injection"] [data ""] [severity "2"] [ver ""] [maturity "0"] [accuracy "0"] [tag "sqli"] [tag "crs"]`,
		Details(r))
}

func TestNewScriptWithoutLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.lua")
	require.NoError(t, os.WriteFile(path, []byte("return true"), 0o600))
	_, err := NewScript(path, nil, "", 1, nil)
	require.Error(t, err)
	assert.Equal(t, logging.KindUnsupported, logging.AsCompileError(err).Kind)
}
