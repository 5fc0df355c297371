package main

import (
	"fmt"
	"io"

	app "github.com/okian/corep/internal/app"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var file, sources, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the audit trail of an extraction file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readDocument(file, sources)
			if err != nil {
				return err
			}
			out, err := app.New().ExportAudit(doc.Fields, doc.Sources, doc.Reasoning, format)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			if err == nil && len(out) > 0 && out[len(out)-1] != '\n' {
				_, err = fmt.Fprintln(cmd.OutOrStdout())
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "extraction JSON file")
	cmd.Flags().StringVar(&sources, "sources", "", "JSON array of retrieved sources, replacing those in --file")
	cmd.Flags().StringVar(&format, "format", "json", "audit format (json, csv)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
