package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/okian/corep/internal/domain/template"
	"github.com/okian/corep/internal/domain/validation"
	"github.com/spf13/cobra"
)

func templateArg(args []string) string {
	if len(args) == 0 {
		return template.OwnFunds
	}
	return args[0]
}

func newSchemaCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema [type]",
		Short: "Print the row layout of a template (default C01)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := template.SchemaFor(templateArg(args))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch format {
			case outputJSON:
				return writeJSON(w, schema)
			case outputText:
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "%s %s (%s)\n\n", schema.TemplateType, schema.Name, schema.Currency)
				fmt.Fprintln(tw, "ROW\tCATEGORY\tLABEL\tARTICLE")
				for _, row := range schema.Rows {
					label := row.Label
					if row.IsTotal {
						label += " *"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Code, row.Category, label, row.Article)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("corepctl.schema %q: %w", format, ErrFormat)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", outputText, "output format (json, text)")
	return cmd
}

func newRulesCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "rules [type]",
		Short: "List the validation rules of a template (default C01)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := validation.NewEngine().Rules(templateArg(args))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch format {
			case outputJSON:
				return writeJSON(w, rules)
			case outputText:
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSEVERITY\tNAME")
				for _, r := range rules {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Severity, r.Name)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("corepctl.rules %q: %w", format, ErrFormat)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", outputText, "output format (json, text)")
	return cmd
}
