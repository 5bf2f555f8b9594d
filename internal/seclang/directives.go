package seclang

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/config"
	"github.com/klyr/seclang/internal/keyword"
	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/operators"
	"github.com/klyr/seclang/internal/rules"
	"github.com/klyr/seclang/internal/variables"
)

type handler struct {
	min, max int // max < 0 means unbounded
	run      func(c *Compiler, d Directive) error
}

var unsupportedDirectives = []string{
	"SecCacheTransformations", "SecChrootDir", "SecConnEngine", "SecConnReadStateLimit",
	"SecConnWriteStateLimit", "SecContentInjection", "SecCookieV0Separator",
	"SecDisableBackendCompression", "SecGeoLookupDb", "SecGsbLookupDb", "SecGuardianLog",
	"SecHashEngine", "SecHashKey", "SecHashMethodPm", "SecHashMethodRx", "SecHashParam",
	"SecInterceptOnError", "SecRequestBodyInMemoryLimit", "SecRuleInheritance",
	"SecRulePerfTime", "SecSensorId", "SecServerSignature", "SecStreamInBodyInspection",
	"SecStreamOutBodyInspection",
}

// directives is built in init since handlers reach back into dispatch
// through Include.
var directives *keyword.Table[handler]

func init() {
	table := map[string]handler{
		"SecRule":                  {2, 3, (*Compiler).secRule},
		"SecAction":                {1, 1, (*Compiler).secAction},
		"SecRuleScript":            {1, 2, (*Compiler).secRuleScript},
		"SecDefaultAction":         {1, 1, (*Compiler).secDefaultAction},
		"SecMarker":                {1, 1, (*Compiler).secMarker},
		"SecRuleRemoveById":        {1, -1, (*Compiler).removeByID},
		"SecRuleRemoveByTag":       {1, 1, (*Compiler).removeByTag},
		"SecRuleRemoveByMsg":       {1, 1, (*Compiler).removeByMsg},
		"SecRuleUpdateTargetById":  {2, 2, (*Compiler).updateTargetByID},
		"SecRuleUpdateTargetByTag": {2, 2, (*Compiler).updateTargetByTag},
		"SecRuleUpdateTargetByMsg": {2, 2, (*Compiler).updateTargetByMsg},
		"SecRuleUpdateActionById":  {2, 2, (*Compiler).updateActionByID},
		"Include":                  {1, 1, (*Compiler).include},
	}
	directives = keyword.New(table)
	for _, name := range config.DirectiveNames() {
		directives = directives.With(name, handler{0, -1, (*Compiler).property})
	}
	for _, name := range unsupportedDirectives {
		directives = directives.With(name, handler{0, -1, (*Compiler).unsupported})
	}
}

// DirectiveNames lists every directive the compiler recognizes.
func DirectiveNames() []string {
	return directives.Names()
}

func (c *Compiler) dispatch(d Directive) {
	h, ok := directives.Lookup(d.Name)
	if !ok {
		if hint, found := directives.Suggest(d.Name); found {
			c.report(d, logging.Syntaxf("Unknown directive: %s (did you mean %s?)", d.Name, hint))
			return
		}
		c.report(d, logging.Syntaxf("Unknown directive: %s", d.Name))
		return
	}
	d.Name, _ = directives.Canonical(d.Name)
	c.metrics.ObserveDirective(d.Name)

	if len(d.Args) < h.min || (h.max >= 0 && len(d.Args) > h.max) {
		c.report(d, logging.Syntaxf("%s: unexpected number of arguments (%d)", d.Name, len(d.Args)))
		return
	}
	c.logger.Debug().Str("directive", d.Name).Str("file", d.File).Int("line", d.Line).Msg("directive")
	if err := h.run(c, d); err != nil {
		c.report(d, err)
	}
}

func (c *Compiler) secRule(d Directive) error {
	vars, err := variables.ParseList(d.Args[0])
	if err != nil {
		return err
	}
	op, err := operators.Parse(d.Args[1], d.File)
	if err != nil {
		return err
	}
	var list []actions.Action
	if len(d.Args) == 3 {
		if list, err = actions.ParseList(d.Args[2]); err != nil {
			return err
		}
	}
	r, err := rules.NewConditional(vars, op, list, d.File, d.Line)
	if err != nil {
		return err
	}
	return c.rules.AddRule(r)
}

func (c *Compiler) secAction(d Directive) error {
	list, err := actions.ParseList(d.Args[0])
	if err != nil {
		return err
	}
	c.closeChain(d)
	return c.rules.AddUnconditionalRule(rules.NewUnconditional(list, d.File, d.Line))
}

func (c *Compiler) secRuleScript(d Directive) error {
	var list []actions.Action
	if len(d.Args) == 2 {
		var err error
		if list, err = actions.ParseList(d.Args[1]); err != nil {
			return err
		}
	}
	r, err := rules.NewScript(d.Args[0], list, d.File, d.Line, c.scripts)
	if err != nil {
		return err
	}
	return c.rules.AddRule(r)
}

func (c *Compiler) secDefaultAction(d Directive) error {
	list, err := actions.ParseList(d.Args[0])
	if err != nil {
		return err
	}
	return c.rules.SetDefaultActions(list)
}

func (c *Compiler) secMarker(d Directive) error {
	c.closeChain(d)
	return c.rules.AddMarker(d.Args[0], d.File, d.Line)
}

func (c *Compiler) closeChain(d Directive) {
	if open := c.rules.OpenChain(); open != nil {
		c.logger.Warn().
			Str("file", d.File).
			Int("line", d.Line).
			Int64("chain_start", open.ID).
			Msgf("%s closes the open chain", d.Name)
	}
}

func (c *Compiler) exception(d Directive, err error) error {
	if err == nil {
		c.metrics.ObserveException(d.Name)
	}
	return err
}

func (c *Compiler) removeByID(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadRemoveByID(strings.Join(d.Args, " "), d.File, d.Line))
}

func (c *Compiler) removeByTag(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadRemoveByTag(d.Args[0], d.File, d.Line))
}

func (c *Compiler) removeByMsg(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadRemoveByMsg(d.Args[0], d.File, d.Line))
}

func (c *Compiler) updateTargetByID(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadUpdateTargetByID(d.Args[0], d.Args[1], d.File, d.Line))
}

func (c *Compiler) updateTargetByTag(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadUpdateTargetByTag(d.Args[0], d.Args[1], d.File, d.Line))
}

func (c *Compiler) updateTargetByMsg(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadUpdateTargetByMsg(d.Args[0], d.Args[1], d.File, d.Line))
}

func (c *Compiler) updateActionByID(d Directive) error {
	return c.exception(d, c.rules.Exceptions.LoadUpdateActionByID(d.Args[0], d.Args[1], d.File, d.Line))
}

func (c *Compiler) property(d Directive) error {
	return c.rules.Properties.Set(d.Name, d.Args, filepath.Dir(d.File))
}

func (c *Compiler) unsupported(d Directive) error {
	return logging.Unsupportedf(d.Name, "%s is not supported.", d.Name)
}

// include compiles every file matching the pattern, relative to the
// including file, in lexical order.
func (c *Compiler) include(d Directive) error {
	pattern := d.Args[0]
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(filepath.Dir(d.File), pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return logging.NewError(logging.KindSyntax, "Include: invalid pattern "+d.Args[0], err)
	}
	if len(matches) == 0 {
		return logging.Semanticf("Include: no file matches %s", d.Args[0])
	}
	sort.Strings(matches)

	for _, path := range matches {
		for _, ref := range c.refs {
			if ref == path {
				return logging.Semanticf("Include: %s includes itself", path)
			}
		}
	}
	for _, path := range matches {
		src, err := os.ReadFile(path)
		if err != nil {
			return logging.NewError(logging.KindSemantic, "Failed to open file: "+path, err)
		}
		c.compile(path, string(src))
	}
	return nil
}
