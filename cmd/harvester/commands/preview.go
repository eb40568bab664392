package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"harvester/internal/formatter"
	"harvester/internal/sink"
)

var (
	previewInput string
	previewLimit int
	previewWidth int
	previewOut   string
)

func init() {
	previewCmd.Flags().StringVarP(&previewInput, "input", "i", "", "Table file written by the file sink (.jsonl).")
	previewCmd.Flags().IntVarP(&previewLimit, "limit", "n", 20, "Maximum rows to show, 0 for all.")
	previewCmd.Flags().IntVar(&previewWidth, "width", 48, "Display width of the text column.")
	previewCmd.Flags().StringVarP(&previewOut, "output", "o", "", "Write the preview to this markdown file instead of stdout.")
	_ = previewCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(previewCmd)
}

var previewCmd = &cobra.Command{
	Use:   "preview --input <table.jsonl> [--limit N]",
	Short: "Prints a saved table as an aligned markdown table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		records, err := sink.LoadFile(previewInput)
		if err != nil {
			return err
		}

		title := strings.TrimSuffix(filepath.Base(previewInput), ".jsonl")

		preview := formatter.Preview(records, formatter.PreviewOptions{
			Title:     title,
			Limit:     previewLimit,
			TextWidth: previewWidth,
		})

		if previewOut == "" {
			fmt.Fprint(cmd.OutOrStdout(), preview)

			return nil
		}

		return os.WriteFile(previewOut, []byte(preview), 0o644)
	},
}
