package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"harvester/internal/formatter"
)

var fmtWrite bool

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "w", false, "Write the realigned files instead of listing them.")
	rootCmd.AddCommand(fmtCmd)
}

var fmtCmd = &cobra.Command{
	Use:   "fmt [--write] <file-or-dir>...",
	Short: "Realigns the tables of saved markdown previews.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		changed := 0

		for _, root := range args {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}

				if d.IsDir() || !strings.HasSuffix(path, ".md") {
					return nil
				}

				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}

				formatted := formatter.FormatMarkdown(string(content))
				if formatted == string(content) {
					return nil
				}

				changed++

				if !fmtWrite {
					fmt.Fprintf(w, "would format %s\n", path)

					return nil
				}

				if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}

				fmt.Fprintf(w, "formatted %s\n", path)

				return nil
			})
			if err != nil {
				return err
			}
		}

		fmt.Fprintf(w, "%d file(s) need formatting\n", changed)

		return nil
	},
}
