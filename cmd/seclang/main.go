package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/klyr/seclang/internal/config"
	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/seclang"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "seclang",
		Short:        "SecLang rule compiler",
		SilenceUsage: true,
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDirectivesCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		var verr *config.ValidationError
		var cerr *logging.CompileErrors
		switch {
		case errors.As(err, &verr):
			for _, msg := range verr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		case errors.As(err, &cerr):
			for _, msg := range cerr.Problems {
				fmt.Fprintln(os.Stderr, msg)
			}
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate [FILES...]",
		Short: "Compile rule files and report every error",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(configPath, args)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := s.compile()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %d rule(s), rule set %s\n", len(rs.Active()), rs.ID)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func newDirectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "directives",
		Short: "List the directives the compiler recognizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range seclang.DirectiveNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "version=%s commit=%s buildDate=%s\n", version, commit, buildDate)
		},
	}
}
