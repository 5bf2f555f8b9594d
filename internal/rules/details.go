package rules

import (
	"strconv"
	"strings"
)

// Details renders the bracketed rule summary used in error and audit log
// lines, e.g. [file "x.conf"] [line "3"] [id "1"] ... [tag "a"].
func Details(r *Rule) string {
	var b strings.Builder
	field := func(name, value string) {
		b.WriteString(" [")
		b.WriteString(name)
		b.WriteString(` "`)
		b.WriteString(value)
		b.WriteString(`"]`)
	}
	field("file", r.File)
	field("line", strconv.Itoa(r.Line))
	field("id", strconv.FormatInt(r.ID, 10))
	field("rev", r.Rev)
	field("msg", r.Msg)
	field("data", r.LogData)
	field("severity", strconv.FormatInt(r.Severity, 10))
	field("ver", r.Ver)
	field("maturity", strconv.FormatInt(r.Maturity, 10))
	field("accuracy", strconv.FormatInt(r.Accuracy, 10))
	for _, tag := range r.Tags {
		field("tag", tag)
	}
	return strings.TrimPrefix(b.String(), " ")
}
