package main

import (
	"os"

	"github.com/okian/corep/pkg/logger"
	"github.com/spf13/cobra"
)

// Output formats for commands that print structured results.
const (
	outputJSON = "json"
	outputText = "text"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "corepctl",
		Short: "Work with COREP Own Funds reports from the command line",
		Long: `corepctl derives, validates and audits COREP templates.

Available subcommands:
  derive - assemble a report from an extraction file
  export - render the audit trail of an extraction file
  schema - print a template row layout
  rules  - list the validation rules of a template
  submit - send an extraction file to a reporting server`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(os.Stderr, logger.FormatText); err != nil {
				return err
			}
			return logger.SetLevelString(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newDeriveCmd(),
		newExportCmd(),
		newSchemaCmd(),
		newRulesCmd(),
		newSubmitCmd(),
	)
	return root
}
