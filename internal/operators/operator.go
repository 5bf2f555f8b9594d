// Package operators builds and initializes the match conditions of
// SecRule directives.
package operators

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/runtimestring"
)

// Operator is a compiled match condition. Arg is set for operators whose
// argument may contain macros.
type Operator struct {
	Kind    Kind                         `json:"-" yaml:"-"`
	Name    string                       `json:"name" yaml:"name"`
	Param   string                       `json:"param,omitempty" yaml:"param,omitempty"`
	Arg     *runtimestring.RunTimeString `json:"-" yaml:"-"`
	Negated bool                         `json:"negated,omitempty" yaml:"negated,omitempty"`
	// FileRef is the directive's source file, used to resolve relative paths.
	FileRef string `json:"-" yaml:"-"`

	initialized bool
	regex       *regexp.Regexp
	phrases     *phraseMatcher
	networks    []netip.Prefix
	byteRanges  [][2]byte
	number      int
	hasNumber   bool
	files       []string
}

// New returns an initialized operator. keyword is the operator name without
// the leading "@". An empty keyword selects rx. Negation is applied before
// initialization runs.
func New(keyword, param string, negated bool, fileRef string) (*Operator, error) {
	name := strings.TrimPrefix(strings.TrimSpace(keyword), "@")
	if name == "" {
		name = "rx"
	}
	kind, ok := table.Lookup(name)
	if !ok {
		if hint, found := table.Suggest(name); found {
			return nil, logging.Syntaxf("Unknown operator: @%s (did you mean @%s?)", name, hint)
		}
		return nil, logging.Syntaxf("Unknown operator: @%s", name)
	}
	def := byKind[kind]

	op := &Operator{Kind: kind, Name: def.name, Param: param, FileRef: fileRef}
	switch def.arg {
	case argNone:
		if strings.TrimSpace(param) != "" {
			return nil, logging.Syntaxf("Operator @%s does not take an argument", def.name)
		}
	case argLiteral:
		if strings.TrimSpace(param) == "" {
			return nil, logging.Syntaxf("Operator @%s requires an argument", def.name)
		}
	case argMacro:
		arg, err := runtimestring.Parse(param)
		if err != nil {
			return nil, err
		}
		op.Arg = arg
	}

	op.Negated = negated
	if err := op.Init(); err != nil {
		return nil, err
	}
	return op, nil
}

// Parse splits an operator expression such as "!@rx ^a" or a bare pattern.
func Parse(expr, fileRef string) (*Operator, error) {
	negated := false
	trimmed := strings.TrimLeft(expr, " \t")
	if strings.HasPrefix(trimmed, "!") {
		negated = true
		trimmed = strings.TrimLeft(trimmed[1:], " \t")
	}
	if !strings.HasPrefix(trimmed, "@") {
		return New("rx", trimmed, negated, fileRef)
	}

	name, param := trimmed[1:], ""
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name, param = name[:i], name[i+1:]
	}
	return New(name, strings.TrimSpace(param), negated, fileRef)
}

func (o *Operator) Initialized() bool {
	return o.initialized
}

// Files lists the resolved pattern files an operator loaded.
func (o *Operator) Files() []string {
	return append([]string(nil), o.files...)
}

// String renders the operator in directive syntax.
func (o *Operator) String() string {
	var b strings.Builder
	if o.Negated {
		b.WriteByte('!')
	}
	b.WriteByte('@')
	b.WriteString(o.Name)
	if o.Param != "" {
		b.WriteByte(' ')
		b.WriteString(o.Param)
	}
	return b.String()
}
