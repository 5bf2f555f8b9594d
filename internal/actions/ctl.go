package actions

import (
	"regexp"
	"strings"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/variables"
)

// Ctl is a parsed ctl:option=value runtime toggle.
type Ctl struct {
	Option  string               `json:"option" yaml:"option"`
	Value   string               `json:"value" yaml:"value"`
	IDs     []IDRange            `json:"ids,omitempty" yaml:"ids,omitempty"`
	Tag     string               `json:"tag,omitempty" yaml:"tag,omitempty"`
	Targets []variables.Variable `json:"targets,omitempty" yaml:"targets,omitempty"`
}

var ctlEnums = map[string][]string{
	"auditEngine":              {"On", "Off", "RelevantOnly"},
	"requestBodyProcessor":     {"JSON", "XML", "URLENCODED", "MULTIPART"},
	"forceRequestBodyVariable": {"On", "Off"},
	"requestBodyAccess":        {"On", "Off", "true", "false"},
	"ruleEngine":               {"On", "Off", "DetectionOnly"},
}

var auditParts = regexp.MustCompile(`^[+-]?[A-KZ]+$`)

func parseCtl(raw string) (*Ctl, error) {
	option, value, ok := strings.Cut(raw, "=")
	if !ok || value == "" {
		return nil, logging.Syntaxf("ctl: expected option=value, got %s", raw)
	}
	c := &Ctl{Option: strings.TrimSpace(option), Value: strings.TrimSpace(value)}

	for name, allowed := range ctlEnums {
		if !strings.EqualFold(name, c.Option) {
			continue
		}
		c.Option = name
		for _, candidate := range allowed {
			if strings.EqualFold(candidate, c.Value) {
				c.Value = candidate
				return c, nil
			}
		}
		return nil, logging.Syntaxf("ctl:%s does not accept %s", name, c.Value)
	}

	var err error
	switch strings.ToLower(c.Option) {
	case "auditlogparts":
		c.Option = "auditLogParts"
		if !auditParts.MatchString(c.Value) {
			return nil, logging.Syntaxf("ctl:auditLogParts has invalid parts %s", c.Value)
		}
	case "ruleremovebyid":
		c.Option = "ruleRemoveById"
		c.IDs, err = ParseIDRanges(c.Value)
	case "ruleremovebytag":
		c.Option = "ruleRemoveByTag"
		c.Tag = c.Value
	case "ruleremovetargetbyid":
		c.Option = "ruleRemoveTargetById"
		var id string
		id, c.Targets, err = splitTargetUpdate(c.Value)
		if err == nil {
			c.IDs, err = ParseIDRanges(id)
		}
	case "ruleremovetargetbytag":
		c.Option = "ruleRemoveTargetByTag"
		c.Tag, c.Targets, err = splitTargetUpdate(c.Value)
	default:
		return nil, logging.Syntaxf("Unknown ctl option: %s", c.Option)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// splitTargetUpdate splits "key;VARS" used by the ruleRemoveTarget options.
func splitTargetUpdate(raw string) (string, []variables.Variable, error) {
	key, list, ok := strings.Cut(raw, ";")
	if !ok || key == "" || list == "" {
		return "", nil, logging.Syntaxf("ctl: expected key;VARIABLES, got %s", raw)
	}
	targets, err := variables.ParseList(list)
	if err != nil {
		return "", nil, err
	}
	return key, targets, nil
}
