package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/okian/corep/internal/adapters/extraction"
	app "github.com/okian/corep/internal/app"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/types"
	"github.com/okian/corep/pkg/logger"
	"github.com/spf13/cobra"
)

// offline satisfies the service retriever without indexing a corpus; the
// extraction file already carries its sources.
type offline struct{}

func (offline) Retrieve(context.Context, string, string, int) ([]model.RetrievedDocument, error) {
	return []model.RetrievedDocument{}, nil
}

func newDeriveCmd() *cobra.Command {
	var (
		file, sources, format string
		strict                bool
	)
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Assemble a report from an extraction file",
		Long: `Derive the aggregate rows, run the validation rules and build the audit
trail for the fields in an extraction file. Nothing is sent to a model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readDocument(file, sources)
			if err != nil {
				return err
			}
			report, err := assemble(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}
			if strict && report.ValidationSummary.Blocking {
				return ErrBlocking
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "extraction JSON file")
	cmd.Flags().StringVar(&sources, "sources", "", "JSON array of retrieved sources, replacing those in --file")
	cmd.Flags().StringVar(&format, "format", outputJSON, "output format (json, text)")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a blocking rule fails")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func assemble(ctx context.Context, doc *document) (*types.Report, error) {
	svc := app.New(
		app.WithRetriever(offline{}),
		app.WithExtractor(extraction.NewGeminiExtractor()),
		app.WithLogger(logger.Named("corepctl")),
		app.WithCacheTTL(0),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	defer svc.Stop()
	return svc.Assemble(ctx, doc.TemplateType, doc.extraction(), doc.Sources)
}

func printReport(w io.Writer, r *types.Report, format string) error {
	switch format {
	case outputJSON:
		return writeJSON(w, r)
	case outputText:
		return writeReportText(w, r)
	default:
		return fmt.Errorf("corepctl.derive %q: %w", format, ErrFormat)
	}
}

func writeReportText(w io.Writer, r *types.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Report\t%s\n", r.ID)
	fmt.Fprintf(tw, "Template\t%s (%s)\n", r.TemplateType, r.Template.Currency)
	fmt.Fprintf(tw, "Confidence\t%.2f\n\n", r.Confidence)

	fmt.Fprintln(tw, "ROW\tVALUE")
	for _, row := range r.Template.Rows() {
		if row.Value == nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", row.Code, humanize.Commaf(*row.Value))
	}

	fmt.Fprintln(tw, "\nRULE\tSEVERITY\tRESULT\tMESSAGE")
	for _, res := range r.Validation {
		result := "pass"
		if !res.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.RuleID, res.Severity, result, res.Message)
	}
	s := r.ValidationSummary
	fmt.Fprintf(tw, "\n%d/%d passed, %d errors, %d warnings, blocking=%t\n",
		s.Passed, s.Total, s.ErrorsFailed, s.WarningsFailed, s.Blocking)

	for _, u := range r.UnmappedRows {
		fmt.Fprintf(tw, "ignored row %s\n", u)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
