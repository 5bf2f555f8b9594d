package actions

import (
	"strconv"
	"strings"

	"github.com/klyr/seclang/internal/logging"
)

// IDRange is an inclusive rule id interval.
type IDRange struct {
	From int64 `json:"from" yaml:"from"`
	To   int64 `json:"to" yaml:"to"`
}

func (r IDRange) Contains(id int64) bool {
	return id >= r.From && id <= r.To
}

func (r IDRange) String() string {
	if r.From == r.To {
		return strconv.FormatInt(r.From, 10)
	}
	return strconv.FormatInt(r.From, 10) + "-" + strconv.FormatInt(r.To, 10)
}

// ParseRuleID parses a positive numeric rule id.
func ParseRuleID(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || id <= 0 {
		return 0, logging.Semanticf("The input %q does not seem to be a valid rule id.", raw)
	}
	return id, nil
}

// ParseIDRanges parses "1 2,3 100-200" style id lists.
func ParseIDRanges(raw string) ([]IDRange, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, logging.Semanticf("The input %q does not seem to be a valid rule id.", raw)
	}

	out := make([]IDRange, 0, len(fields))
	for _, field := range fields {
		from, to, isRange := strings.Cut(field, "-")
		start, err := ParseRuleID(from)
		if err != nil {
			return nil, logging.Semanticf("The input %q does not seem to be a valid rule id.", field)
		}
		end := start
		if isRange {
			if end, err = ParseRuleID(to); err != nil || end < start {
				return nil, logging.Semanticf("The input %q does not seem to be a valid rule id range.", field)
			}
		}
		out = append(out, IDRange{From: start, To: end})
	}
	return out, nil
}

// AnyContains reports whether id falls in one of ranges.
func AnyContains(ranges []IDRange, id int64) bool {
	for _, r := range ranges {
		if r.Contains(id) {
			return true
		}
	}
	return false
}
