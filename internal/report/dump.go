package report

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/rules"
)

// Format selects a renderer.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(raw)); f {
	case FormatText, FormatMarkdown, FormatJSON, FormatYAML:
		return f, nil
	case "markdown":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want text|md|json|yaml)", raw)
}

// RenderSummary renders summary in format.
func RenderSummary(summary Summary, format Format) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(RenderMarkdown(summary)), nil
	case FormatJSON:
		return RenderJSON(summary)
	case FormatYAML:
		return yaml.Marshal(summary)
	default:
		return []byte(RenderText(summary)), nil
	}
}

// RenderDump renders the full compiled rule set. Text and markdown print
// every rule back in directive syntax.
func RenderDump(snapshot rules.Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return RenderJSON(snapshot)
	case FormatYAML:
		return yaml.Marshal(snapshot)
	case FormatMarkdown:
		var b strings.Builder
		b.WriteString("# SecLang Rule Set\n\n")
		if snapshot.ID != "" {
			fmt.Fprintf(&b, "Rule set `%s`\n\n", snapshot.ID)
		}
		b.WriteString("```apache\n")
		writeDirectives(&b, snapshot)
		b.WriteString("```\n")
		return []byte(b.String()), nil
	default:
		var b strings.Builder
		writeDirectives(&b, snapshot)
		return []byte(b.String()), nil
	}
}

func writeDirectives(b *strings.Builder, snapshot rules.Snapshot) {
	for _, phase := range sortedPhases(snapshot.DefaultActions) {
		b.WriteString("SecDefaultAction " + quote(joinActions(append([]actions.Action{phaseAction(phase)}, snapshot.DefaultActions[phase]...))) + "\n")
	}
	for _, r := range snapshot.Rules {
		if r.Removed {
			fmt.Fprintf(b, "# removed: id %d (%s:%d)\n", r.ID, r.File, r.Line)
			continue
		}
		r.Walk(func(link *rules.Rule) {
			b.WriteString(Directive(link))
			b.WriteByte('\n')
		})
	}
}

func phaseAction(phase int64) actions.Action {
	a, err := actions.New("phase", fmt.Sprint(phase))
	if err != nil {
		return actions.Action{Name: "phase", Param: fmt.Sprint(phase)}
	}
	return a
}

// Directive prints r in SecLang syntax. Chain continuations are indented.
func Directive(r *rules.Rule) string {
	list := joinActions(append(append([]actions.Action(nil), r.Transformations...), r.Actions...))
	switch r.Kind {
	case rules.Marker:
		return "SecMarker " + quote(r.Marker)
	case rules.Unconditional:
		return "SecAction " + quote(list)
	case rules.Script:
		return "SecRuleScript " + quote(r.ScriptPath) + " " + quote(list)
	}

	vars := make([]string, 0, len(r.Variables))
	for _, v := range r.Variables {
		vars = append(vars, v.String())
		for _, ex := range v.KeyExclusions {
			vars = append(vars, "!"+ex.String())
		}
	}
	line := "SecRule " + strings.Join(vars, "|") + " " + quote(r.Operator.String())
	if list != "" {
		line += " " + quote(list)
	}
	if r.ID == 0 {
		line = "    " + line
	}
	return line
}

func joinActions(list []actions.Action) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ",")
}

func sortedPhases(m map[int64][]actions.Action) []int64 {
	phases := make([]int64, 0, len(m))
	for p := range m {
		phases = append(phases, p)
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
	return phases
}

// quote wraps s in double quotes the way the lexer reads them back.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
