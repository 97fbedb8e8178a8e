package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	humanize "github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/noah-isme/batch-extractor-bot/internal/models"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the catalog by title",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(getCfg(cmd), getLogger(cmd))
		if err != nil {
			return err
		}
		term := strings.Join(args, " ")
		matches := a.catalog.Search(term)
		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("No matching batches found."))
			return nil
		}

		fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%s for %q", english.Plural(len(matches), "result", "results"), term)))
		fmt.Fprintln(out, renderBatchTable(matches))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <batch-id>",
	Short: "Show the subject summary of one batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(getCfg(cmd), getLogger(cmd))
		if err != nil {
			return err
		}
		record, err := a.lookupBatch(args[0])
		if err != nil {
			return err
		}
		summary, err := a.summaries.BuildSummary(cmd.Context(), record.ID, record.Title)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Export every lesson video and PDF link of one batch",
	Long: "Export every lesson video and PDF link of one batch.\n\n" +
		"The report is written to stdout and removed from the exports directory\n" +
		"unless --keep is given, in which case its path is printed instead.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(getCfg(cmd), getLogger(cmd))
		if err != nil {
			return err
		}
		record, err := a.lookupBatch(args[0])
		if err != nil {
			return err
		}

		format := a.format
		if raw, _ := cmd.Flags().GetString("format"); raw != "" {
			if format, err = models.ParseExportFormat(raw); err != nil {
				return err
			}
		}
		keep, _ := cmd.Flags().GetBool("keep")

		result, err := a.exports.ExportBatch(cmd.Context(), record.ID, record.Title, format)
		if err != nil {
			return err
		}

		if keep {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("📦 Extracted %d entries from %s!", result.TotalEntries, record.Title)))
			fmt.Fprintf(out, "%s %s (%s, %s)\n",
				mutedStyle.Render("file:"), result.Path,
				humanize.Bytes(uint64(result.SizeBytes)),
				english.Plural(result.SubjectCount, "subject", "subjects"))
			return nil
		}

		if err := copyReport(cmd.OutOrStdout(), result.Path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), mutedStyle.Render(fmt.Sprintf("%d entries, %s", result.TotalEntries, humanize.Bytes(uint64(result.SizeBytes)))))
		return a.exports.Delete(result.RelativePath)
	},
}

func init() {
	exportCmd.Flags().String("format", "", "Report format: txt, csv or pdf (defaults to EXPORTS_DEFAULT_FORMAT)")
	exportCmd.Flags().Bool("keep", false, "Keep the report in the exports directory and print its path")
}

func renderBatchTable(matches []models.BatchRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "ID", "TITLE")
	for i, match := range matches {
		t.Row(fmt.Sprintf("%d", i), match.ID, match.Title)
	}
	return t.Render()
}

func copyReport(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
