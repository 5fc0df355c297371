package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const reportsPath = "/api/reports"

func newSubmitCmd() *cobra.Command {
	var (
		url, file string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send an extraction file to a reporting server",
		Long: `Post an extraction file to the /api/reports endpoint of a running
reporting server and print the assembled report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := readDocument(file, "")
			if err != nil {
				return err
			}
			body, err := json.Marshal(doc)
			if err != nil {
				return err
			}

			target := strings.TrimRight(url, "/") + reportsPath
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, target, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("corepctl.submit: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := (&http.Client{Timeout: timeout}).Do(req)
			if err != nil {
				return fmt.Errorf("corepctl.submit %s: %w", target, err)
			}
			defer func() { _ = resp.Body.Close() }()

			out, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("corepctl.submit read: %w", err)
			}
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("corepctl.submit %s: %w: %d %s", target, ErrSubmit, resp.StatusCode, strings.TrimSpace(string(out)))
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8000", "base URL of the reporting server")
	cmd.Flags().StringVarP(&file, "file", "f", "", "extraction JSON file")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
