package main

import (
	"github.com/spf13/cobra"

	"github.com/klyr/seclang/internal/report"
)

func newDumpCmd() *cobra.Command {
	var configPath string
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "dump [FILES...]",
		Short: "Print the compiled rule set",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			s, err := openSession(configPath, args)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := s.compile()
			if err != nil {
				return err
			}
			data, err := report.RenderDump(rs.Snapshot(), f)
			if err != nil {
				return err
			}
			return report.WriteOutput(outPath, data)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|md|json|yaml")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}
