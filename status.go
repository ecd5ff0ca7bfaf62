package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/minios-linux/transdiff/langmeta"
	"github.com/minios-linux/transdiff/pipeline"
)

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var a runArgs

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show missing keys per locale file",
		Long: `Compare every target file with the base file and show how many keys
are missing or empty. Does not modify any files and does not contact any
provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), &a)
		},
	}

	addDocumentFlags(cmd, &a)
	return cmd
}

func runStatus(ctx context.Context, out io.Writer, a *runArgs) error {
	cfg, err := loadConfig(a)
	if err != nil {
		return err
	}

	opts := pipelineOptions(cfg)
	opts.DryRun = true
	opts.OnLog = nil
	opts.OnError = nil

	report, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s %s\n", infoColor.Sprint("Base file:"), displayPath(cfg.Main))
	showStatusTable(out, report)
	return summarize(report, true)
}

var statusColors = map[pipeline.Status]*color.Color{
	pipeline.StatusUpToDate: successColor,
	pipeline.StatusPending:  warningColor,
	pipeline.StatusUpdated:  successColor,
	pipeline.StatusFailed:   errorColor,
}

// showStatusTable prints one row per target document.
func showStatusTable(out io.Writer, report *pipeline.Report) {
	fileWidth := len("File")
	for _, r := range report.Results {
		fileWidth = max(fileWidth, len(displayPath(r.Path)))
	}

	header := fmt.Sprintf("%-*s  %-24s  %-10s  %s", fileWidth, "File", "Language", "Status", "Missing")
	fmt.Fprintln(out, strings.Repeat("─", len(header)))
	fmt.Fprintln(out, header)
	fmt.Fprintln(out, strings.Repeat("─", len(header)))

	for _, r := range report.Results {
		lang := "-"
		if r.Lang != "" {
			lang = langmeta.Describe(r.Lang)
		}
		missing := "-"
		if r.Status != pipeline.StatusFailed {
			missing = fmt.Sprintf("%d", r.Missing)
		}
		status := fmt.Sprintf("%-10s", r.Status)
		if c := statusColors[r.Status]; c != nil {
			status = c.Sprint(status)
		}
		fmt.Fprintf(out, "%-*s  %-24s  %s  %s\n", fileWidth, displayPath(r.Path), lang, status, missing)
	}
	fmt.Fprintln(out, strings.Repeat("─", len(header)))

	for _, r := range report.Failed() {
		fmt.Fprintf(out, "  %s %s: %v\n", errorColor.Sprint("!"), displayPath(r.Path), r.Err)
	}
	fmt.Fprintln(out)
}

// displayPath shortens path to be relative to the working directory when
// that is possible without leaving it.
func displayPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	wd, err := filepath.Abs(".")
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
