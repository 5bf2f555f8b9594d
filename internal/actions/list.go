package actions

import (
	"strings"

	"github.com/klyr/seclang/internal/logging"
)

// ParseList parses a comma separated action list. Commas inside single
// quotes do not split and \' escapes a quote.
func ParseList(raw string) ([]Action, error) {
	items, err := splitActions(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Action, 0, len(items))
	for _, item := range items {
		name, param, _ := strings.Cut(item, ":")
		a, err := New(strings.TrimSpace(name), unquote(strings.TrimSpace(param)))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func splitActions(raw string) ([]string, error) {
	var (
		items   []string
		current strings.Builder
		quoted  bool
	)
	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			items = append(items, item)
		}
		current.Reset()
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\\' && quoted && i+1 < len(raw) && raw[i+1] == '\'':
			current.WriteString(`\'`)
			i++
		case c == '\'':
			quoted = !quoted
			current.WriteByte(c)
		case c == ',' && !quoted:
			flush()
		default:
			current.WriteByte(c)
		}
	}
	if quoted {
		return nil, logging.Syntaxf("Unterminated quote in action list: %s", raw)
	}
	flush()
	return items, nil
}

func unquote(param string) string {
	if len(param) >= 2 && param[0] == '\'' && param[len(param)-1] == '\'' {
		param = param[1 : len(param)-1]
	}
	return strings.ReplaceAll(param, `\'`, `'`)
}

// Partition moves transformation actions to their own list in one forward
// pass. Relative order inside both lists follows list.
func Partition(list []Action) (transformations, actions []Action) {
	for _, a := range list {
		if a.Kind == Transformation {
			transformations = append(transformations, a)
			continue
		}
		actions = append(actions, a)
	}
	return transformations, actions
}

// Find returns the last action named name.
func Find(list []Action, name string) (Action, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if strings.EqualFold(list[i].Name, name) {
			return list[i], true
		}
	}
	return Action{}, false
}

// FindAll returns every action named name in order.
func FindAll(list []Action, name string) []Action {
	var out []Action
	for _, a := range list {
		if strings.EqualFold(a.Name, name) {
			out = append(out, a)
		}
	}
	return out
}

// FindDisruptive returns the last disruptive action of list.
func FindDisruptive(list []Action) (Action, bool) {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Kind == Disruptive {
			return list[i], true
		}
	}
	return Action{}, false
}
