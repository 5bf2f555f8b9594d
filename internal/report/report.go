package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/rules"
)

// Summary describes a compiled rule set and the errors of its compile.
type Summary struct {
	RuleSet       string      `json:"ruleset,omitempty" yaml:"ruleset,omitempty"`
	Engine        string      `json:"engine,omitempty" yaml:"engine,omitempty"`
	Rules         int         `json:"rules" yaml:"rules"`
	Removed       int         `json:"removed" yaml:"removed"`
	Chained       int         `json:"chained" yaml:"chained"`
	Markers       int         `json:"markers" yaml:"markers"`
	DefaultPhases []int64     `json:"default_phases,omitempty" yaml:"default_phases,omitempty"`
	ByPhase       []CountItem `json:"by_phase" yaml:"by_phase"`
	ByKind        []CountItem `json:"by_kind" yaml:"by_kind"`
	TopTags       []CountItem `json:"top_tags" yaml:"top_tags"`
	TopOperators  []CountItem `json:"top_operators" yaml:"top_operators"`
	PatternFiles  []CountItem `json:"pattern_files,omitempty" yaml:"pattern_files,omitempty"`
	Exceptions    []CountItem `json:"exceptions" yaml:"exceptions"`
	Errors        []CountItem `json:"errors" yaml:"errors"`
}

type CountItem struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// Summarize counts rs. rs may be nil when the compile failed.
func Summarize(rs *rules.RuleSet, errs []*logging.CompileError) Summary {
	var summary Summary

	errorCounts := map[string]int{}
	for _, err := range errs {
		errorCounts[string(err.Kind)]++
	}
	summary.Errors = topCounts(errorCounts, 3)
	if rs == nil {
		return summary
	}

	summary.RuleSet = rs.ID
	summary.Engine = string(rs.Properties.RuleEngine)
	summary.DefaultPhases = rs.DefaultPhases()

	phaseCounts := map[string]int{}
	kindCounts := map[string]int{}
	tagCounts := map[string]int{}
	operatorCounts := map[string]int{}
	fileCounts := map[string]int{}
	for _, r := range rs.Rules() {
		switch {
		case r.Kind == rules.Marker:
			summary.Markers++
			continue
		case r.Removed:
			summary.Removed++
			continue
		}
		summary.Rules++
		if r.Chain != nil {
			summary.Chained++
		}
		phaseCounts["phase "+strconv.FormatInt(r.Phase, 10)]++
		kindCounts[r.Kind.String()]++
		for _, tag := range r.Tags {
			tagCounts[tag]++
		}
		r.Walk(func(link *rules.Rule) {
			if link.Operator != nil {
				operatorCounts["@"+link.Operator.Name]++
				for _, file := range link.Operator.Files() {
					fileCounts[file]++
				}
			}
		})
	}

	exceptionCounts := map[string]int{}
	for _, ex := range rs.Exceptions.Records() {
		exceptionCounts[ex.Kind.String()]++
	}

	summary.ByPhase = topCounts(phaseCounts, 5)
	summary.ByKind = topCounts(kindCounts, 4)
	summary.TopTags = topCounts(tagCounts, 5)
	summary.TopOperators = topCounts(operatorCounts, 5)
	summary.PatternFiles = topCounts(fileCounts, 10)
	summary.Exceptions = topCounts(exceptionCounts, 7)

	return summary
}

// DiagnosticSummary describes a diagnostics log.
type DiagnosticSummary struct {
	Total       int         `json:"total" yaml:"total"`
	Start       time.Time   `json:"start" yaml:"start"`
	End         time.Time   `json:"end" yaml:"end"`
	ByKind      []CountItem `json:"by_kind" yaml:"by_kind"`
	TopFiles    []CountItem `json:"top_files" yaml:"top_files"`
	TopFeatures []CountItem `json:"top_features" yaml:"top_features"`
}

type Reader struct {
	Since time.Time
}

// Read loads a diagnostics JSONL log.
func (r *Reader) Read(path string) ([]logging.Diagnostic, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var diagnostics []logging.Diagnostic
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d logging.Diagnostic
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return nil, err
		}
		if !r.Since.IsZero() && d.Timestamp.Before(r.Since) {
			continue
		}
		diagnostics = append(diagnostics, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func SummarizeDiagnostics(diagnostics []logging.Diagnostic) DiagnosticSummary {
	var summary DiagnosticSummary
	if len(diagnostics) == 0 {
		return summary
	}

	summary.Start = diagnostics[0].Timestamp
	summary.End = diagnostics[0].Timestamp

	kindCounts := map[string]int{}
	fileCounts := map[string]int{}
	featureCounts := map[string]int{}
	for _, d := range diagnostics {
		summary.Total++
		if d.Timestamp.Before(summary.Start) {
			summary.Start = d.Timestamp
		}
		if d.Timestamp.After(summary.End) {
			summary.End = d.Timestamp
		}
		kindCounts[d.Kind]++
		if d.File != "" {
			fileCounts[d.File]++
		}
		if d.Feature != "" {
			featureCounts[d.Feature]++
		}
	}

	summary.ByKind = topCounts(kindCounts, 3)
	summary.TopFiles = topCounts(fileCounts, 5)
	summary.TopFeatures = topCounts(featureCounts, 5)
	return summary
}

func topCounts(counts map[string]int, n int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	if len(items) == 0 {
		return nil
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

func RenderText(summary Summary) string {
	var b strings.Builder
	if summary.RuleSet != "" {
		fmt.Fprintf(&b, "Rule set: %s\n", summary.RuleSet)
	}
	if summary.Engine != "" {
		fmt.Fprintf(&b, "Engine: %s\n", summary.Engine)
	}
	fmt.Fprintf(&b, "Rules: %d\n", summary.Rules)
	fmt.Fprintf(&b, "Removed: %d\n", summary.Removed)
	fmt.Fprintf(&b, "Chained: %d\n", summary.Chained)
	fmt.Fprintf(&b, "Markers: %d\n", summary.Markers)
	fmt.Fprintf(&b, "Default action phases: %s\n", phaseList(summary.DefaultPhases))

	writeCounts(&b, "Rules by phase", summary.ByPhase)
	writeCounts(&b, "Rules by kind", summary.ByKind)
	writeCounts(&b, "Top tags", summary.TopTags)
	writeCounts(&b, "Top operators", summary.TopOperators)
	writeCounts(&b, "Pattern files", summary.PatternFiles)
	writeCounts(&b, "Exceptions", summary.Exceptions)
	writeCounts(&b, "Errors", summary.Errors)

	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# SecLang Report\n\n")
	b.WriteString("## Totals\n\n")
	if summary.RuleSet != "" {
		fmt.Fprintf(&b, "- Rule set: `%s`\n", summary.RuleSet)
	}
	fmt.Fprintf(&b, "- Rules: %d\n", summary.Rules)
	fmt.Fprintf(&b, "- Removed: %d\n", summary.Removed)
	fmt.Fprintf(&b, "- Chained: %d\n", summary.Chained)
	fmt.Fprintf(&b, "- Markers: %d\n", summary.Markers)
	fmt.Fprintf(&b, "- Default action phases: %s\n\n", phaseList(summary.DefaultPhases))

	writeCountsMarkdown(&b, "Rules by phase", summary.ByPhase)
	writeCountsMarkdown(&b, "Rules by kind", summary.ByKind)
	writeCountsMarkdown(&b, "Top tags", summary.TopTags)
	writeCountsMarkdown(&b, "Top operators", summary.TopOperators)
	writeCountsMarkdown(&b, "Pattern files", summary.PatternFiles)
	writeCountsMarkdown(&b, "Exceptions", summary.Exceptions)
	writeCountsMarkdown(&b, "Errors", summary.Errors)

	return b.String()
}

func RenderDiagnosticsText(summary DiagnosticSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total: %d\n", summary.Total)
	if summary.Total > 0 {
		fmt.Fprintf(&b, "Window: %s - %s\n", summary.Start.Format(time.RFC3339), summary.End.Format(time.RFC3339))
	}
	writeCounts(&b, "By kind", summary.ByKind)
	writeCounts(&b, "Top files", summary.TopFiles)
	writeCounts(&b, "Top features", summary.TopFeatures)
	return b.String()
}

func RenderJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func phaseList(phases []int64) string {
	if len(phases) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(phases))
	for _, p := range phases {
		parts = append(parts, strconv.FormatInt(p, 10))
	}
	return strings.Join(parts, ", ")
}

func writeCounts(b *strings.Builder, title string, items []CountItem) {
	if len(items) == 0 {
		fmt.Fprintf(b, "%s: none\n", title)
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

func writeCountsMarkdown(b *strings.Builder, title string, items []CountItem) {
	b.WriteString("## ")
	b.WriteString(title)
	b.WriteString("\n\n")
	if len(items) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
	b.WriteString("\n")
}

func WriteOutput(path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
