package variables

import (
	"strings"

	"github.com/klyr/seclang/internal/logging"
)

// ParseList parses a "|" separated selector list such as
// "ARGS|!ARGS:id|&REQUEST_HEADERS:/^x-/". A "|" inside a /regex/ key does
// not split. The result is raw: exclusions are still present.
func ParseList(raw string) ([]Variable, error) {
	items, err := splitSelectors(raw)
	if err != nil {
		return nil, err
	}

	out := make([]Variable, 0, len(items))
	for _, item := range items {
		v, err := Parse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Parse parses a single selector with its optional modifier prefix.
func Parse(item string) (Variable, error) {
	item = strings.TrimSpace(item)
	mod := ModNone
	// a leading "+" marks an explicit addition in target updates
	item = strings.TrimPrefix(item, "+")
	switch {
	case strings.HasPrefix(item, "!"):
		mod = ModExclusion
		item = item[1:]
	case strings.HasPrefix(item, "&"):
		mod = ModCount
		item = item[1:]
	}
	if item == "" {
		return Variable{}, logging.Syntaxf("Empty variable selector")
	}

	name, key, _ := strings.Cut(item, ":")
	v, err := New(strings.TrimSpace(name), strings.TrimSpace(key))
	if err != nil {
		return Variable{}, err
	}
	v.Modifier = mod
	return v, nil
}

func splitSelectors(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, logging.Syntaxf("Empty variable list")
	}

	var (
		items   []string
		start   int
		inRegex bool
	)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case inRegex && c == '\\':
			i++
		case inRegex && c == '/' && (i+1 == len(raw) || raw[i+1] == '|'):
			inRegex = false
		case !inRegex && c == '/' && i > 0 && raw[i-1] == ':' && !isXPath(raw[start:i-1]):
			inRegex = true
		case !inRegex && c == '|':
			items = append(items, raw[start:i])
			start = i + 1
		}
	}
	if inRegex {
		return nil, logging.Syntaxf("Unterminated key pattern in %q", raw)
	}
	items = append(items, raw[start:])

	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return nil, logging.Syntaxf("Empty variable selector in %q", raw)
		}
	}
	return items, nil
}

// XML keys are XPath expressions, not patterns.
func isXPath(name string) bool {
	return strings.EqualFold(strings.TrimLeft(strings.TrimSpace(name), "+!&"), "XML")
}
