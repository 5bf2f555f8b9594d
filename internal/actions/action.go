// Package actions parses SecRule action lists and splits them into the
// transformation pipeline and the action list.
package actions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/runtimestring"
)

// Action is one parsed item of an action list. Number carries the parsed
// value of numeric actions (id, phase, severity, status, skip, accuracy,
// maturity). Value is set for actions whose argument is macro-expandable.
type Action struct {
	Kind   Kind                         `json:"kind" yaml:"kind"`
	Stage  Stage                        `json:"stage" yaml:"stage"`
	Name   string                       `json:"name" yaml:"name"`
	Param  string                       `json:"param,omitempty" yaml:"param,omitempty"`
	Value  *runtimestring.RunTimeString `json:"value,omitempty" yaml:"value,omitempty"`
	Number int64                        `json:"number,omitempty" yaml:"number,omitempty"`
	SetVar *SetVar                      `json:"setvar,omitempty" yaml:"setvar,omitempty"`
	Ctl    *Ctl                         `json:"ctl,omitempty" yaml:"ctl,omitempty"`
}

var phaseNames = map[string]int64{"request": 2, "response": 4, "logging": 5}

var severities = []string{"EMERGENCY", "ALERT", "CRITICAL", "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG"}

// New validates a single action.
func New(name, param string) (Action, error) {
	def, ok := table.Lookup(name)
	if !ok {
		if hint, found := table.Suggest(name); found {
			return Action{}, logging.Syntaxf("Unknown action: %s (did you mean %s?)", name, hint)
		}
		return Action{}, logging.Syntaxf("Unknown action: %s", name)
	}
	canonical, _ := table.Canonical(name)

	if def.unsupported {
		return Action{}, logging.Unsupportedf(canonical, "Action %s is not supported.", canonical)
	}
	switch {
	case def.param == paramNone && param != "":
		return Action{}, logging.Syntaxf("Action %s does not take an argument", canonical)
	case def.param == paramRequired && param == "":
		return Action{}, logging.Syntaxf("Action %s requires an argument", canonical)
	}

	a := Action{Kind: def.kind, Stage: def.stage, Name: canonical, Param: param}
	if err := a.parseParam(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func (a *Action) parseParam() error {
	var err error
	switch a.Name {
	case "id":
		a.Number, err = ParseRuleID(a.Param)
	case "phase":
		a.Number, err = parsePhase(a.Param)
	case "severity":
		a.Number, err = parseSeverity(a.Param)
	case "status":
		a.Number, err = parseBounded(a.Name, a.Param, 100, 599)
	case "skip":
		a.Number, err = parseBounded(a.Name, a.Param, 1, 1<<31-1)
	case "accuracy", "maturity":
		a.Number, err = parseBounded(a.Name, a.Param, 0, 9)
	case "allow":
		switch strings.ToLower(a.Param) {
		case "", "phase", "request":
		default:
			err = logging.Syntaxf("Invalid allow argument: %s", a.Param)
		}
	case "t":
		canonical, ok := transformations.Canonical(a.Param)
		if !ok {
			err = logging.Syntaxf("Unknown transformation: %s", a.Param)
			break
		}
		a.Param = canonical
	case "setvar":
		a.SetVar, err = parseSetVar(a.Param)
	case "ctl":
		a.Ctl, err = parseCtl(a.Param)
	case "msg", "logdata", "tag", "redirect", "setenv", "setuid", "setsid", "setrsc",
		"initcol", "expirevar", "exec", "rev", "ver", "xmlns", "skipAfter":
		a.Value, err = runtimestring.Parse(a.Param)
	}
	return err
}

func parsePhase(raw string) (int64, error) {
	if n, ok := phaseNames[strings.ToLower(raw)]; ok {
		return n, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 || n > 5 {
		return 0, logging.Syntaxf("Unknown phase: %s", raw)
	}
	return n, nil
}

func parseSeverity(raw string) (int64, error) {
	for i, name := range severities {
		if strings.EqualFold(raw, name) {
			return int64(i), nil
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 || n >= int64(len(severities)) {
		return 0, logging.Syntaxf("Invalid severity: %s", raw)
	}
	return n, nil
}

// SeverityName returns the keyword for a numeric severity.
func SeverityName(n int64) string {
	if n < 0 || n >= int64(len(severities)) {
		return ""
	}
	return severities[n]
}

func parseBounded(name, raw string, lo, hi int64) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < lo || n > hi {
		return 0, logging.Syntaxf("Invalid %s value: %s", name, raw)
	}
	return n, nil
}

// IsNone reports whether a is the t:none pipeline reset.
func (a Action) IsNone() bool {
	return a.Kind == Transformation && a.Param == "none"
}

// String renders the action in directive syntax.
func (a Action) String() string {
	if a.Param == "" {
		return a.Name
	}
	if strings.ContainsAny(a.Param, " ,'") {
		return fmt.Sprintf("%s:'%s'", a.Name, strings.ReplaceAll(a.Param, "'", `\'`))
	}
	return a.Name + ":" + a.Param
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
