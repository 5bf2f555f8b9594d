// Package variables parses variable selectors and reconciles exclusion
// and count modifiers into the list a rule inspects.
package variables

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/klyr/seclang/internal/logging"
)

type Modifier int

const (
	ModNone Modifier = iota
	ModCount
	ModExclusion
)

func (m Modifier) String() string {
	switch m {
	case ModCount:
		return "count"
	case ModExclusion:
		return "exclusion"
	default:
		return "none"
	}
}

// Variable selects data from a collection. Key and KeyRegex are mutually
// exclusive; KeyExclusions is filled by Resolve.
type Variable struct {
	Collection    string     `json:"collection" yaml:"collection"`
	Key           string     `json:"key,omitempty" yaml:"key,omitempty"`
	KeyRegex      string     `json:"keyRegex,omitempty" yaml:"keyRegex,omitempty"`
	Modifier      Modifier   `json:"modifier,omitempty" yaml:"modifier,omitempty"`
	KeyExclusions []Variable `json:"keyExclusions,omitempty" yaml:"keyExclusions,omitempty"`

	keyPattern *regexp.Regexp
}

// New builds a plain variable. key may be a literal or a /regex/ selector.
func New(name, key string) (Variable, error) {
	canonical, ok := Known(name)
	if !ok {
		if hint, found := names.Suggest(name); found {
			return Variable{}, logging.Syntaxf("Unknown variable: %s (did you mean %s?)", name, hint)
		}
		return Variable{}, logging.Syntaxf("Unknown variable: %s", name)
	}

	v := Variable{Collection: canonical}
	if key == "" {
		return v, nil
	}
	if !IsCollection(canonical) {
		return Variable{}, logging.Syntaxf("Variable %s does not accept a key (got %q)", canonical, key)
	}

	if isRegexKey(key) && canonical != "XML" {
		pattern := key[1 : len(key)-1]
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return Variable{}, logging.NewError(logging.KindSemantic,
				fmt.Sprintf("Invalid key pattern %s for %s: %v", key, canonical, err), err)
		}
		v.KeyRegex = pattern
		v.keyPattern = re
		return v, nil
	}

	v.Key = strings.Trim(key, "'")
	return v, nil
}

func isRegexKey(key string) bool {
	return len(key) >= 2 && key[0] == '/' && key[len(key)-1] == '/'
}

func (v Variable) HasKey() bool {
	return v.Key != "" || v.KeyRegex != ""
}

// Equal compares collection and key selector. Modifiers are ignored.
func Equal(a, b Variable) bool {
	if !strings.EqualFold(a.Collection, b.Collection) {
		return false
	}
	if (a.KeyRegex != "") != (b.KeyRegex != "") {
		return false
	}
	if a.KeyRegex != "" {
		return a.KeyRegex == b.KeyRegex
	}
	return strings.EqualFold(a.Key, b.Key)
}

// BelongsTo reports whether the exclusion v narrows target. Only the exact
// collection counts; ARGS_GET does not belong to ARGS.
func (v Variable) BelongsTo(target Variable) bool {
	return strings.EqualFold(v.Collection, target.Collection)
}

// Excludes reports whether key was removed from v by an exclusion.
func (v Variable) Excludes(key string) bool {
	for _, ex := range v.KeyExclusions {
		switch {
		case ex.KeyRegex != "":
			if ex.matchKey(key) {
				return true
			}
		case ex.Key == "":
			return true
		case strings.EqualFold(ex.Key, key):
			return true
		}
	}
	return false
}

func (v Variable) matchKey(key string) bool {
	re := v.keyPattern
	if re == nil {
		compiled, err := regexp.Compile("(?i)" + v.KeyRegex)
		if err != nil {
			return false
		}
		re = compiled
	}
	return re.MatchString(key)
}

// String renders v back into selector syntax.
func (v Variable) String() string {
	var b strings.Builder
	switch v.Modifier {
	case ModCount:
		b.WriteByte('&')
	case ModExclusion:
		b.WriteByte('!')
	}
	b.WriteString(v.Collection)
	switch {
	case v.KeyRegex != "":
		b.WriteString(":/")
		b.WriteString(v.KeyRegex)
		b.WriteByte('/')
	case v.Key != "":
		b.WriteByte(':')
		b.WriteString(v.Key)
	}
	return b.String()
}

func (v Variable) clone() Variable {
	out := v
	out.KeyExclusions = append([]Variable(nil), v.KeyExclusions...)
	return out
}
