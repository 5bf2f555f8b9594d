package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/report"
)

func newReportCmd() *cobra.Command {
	var configPath string
	var diagnosticsPath string
	var since string
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "report [FILES...]",
		Short: "Summarize a compiled rule set or a diagnostics log",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if diagnosticsPath != "" {
				return reportDiagnostics(diagnosticsPath, since, f, outPath)
			}

			s, err := openSession(configPath, args)
			if err != nil {
				return err
			}
			defer s.Close()

			// A failed compile is still reported, with its errors.
			rs, err := s.compile()
			var errs []*logging.CompileError
			if err != nil {
				var cerr *logging.CompileErrors
				if !errors.As(err, &cerr) {
					return err
				}
				errs = cerr.Errors
			}

			data, err := report.RenderSummary(report.Summarize(rs, errs), f)
			if err != nil {
				return err
			}
			return report.WriteOutput(outPath, data)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&diagnosticsPath, "diagnostics", "", "Summarize a diagnostics JSONL log instead of compiling")
	cmd.Flags().StringVar(&since, "since", "", "Only include diagnostics newer than this duration (e.g. 10m)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|md|json|yaml")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}

func reportDiagnostics(path, since string, format report.Format, outPath string) error {
	reader := report.Reader{}
	if since != "" {
		dur, err := time.ParseDuration(since)
		if err != nil {
			return fmt.Errorf("invalid since duration: %w", err)
		}
		reader.Since = time.Now().Add(-dur)
	}

	diagnostics, err := reader.Read(path)
	if err != nil {
		return err
	}

	summary := report.SummarizeDiagnostics(diagnostics)
	switch format {
	case report.FormatText, report.FormatMarkdown:
		return report.WriteOutput(outPath, []byte(report.RenderDiagnosticsText(summary)))
	default:
		data, err := report.RenderJSON(summary)
		if err != nil {
			return err
		}
		return report.WriteOutput(outPath, data)
	}
}
