package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptshelf/internal/api"
	"github.com/jackzampolin/promptshelf/internal/highlight"
)

var (
	diffMode  string
	diffPlain bool
)

var diffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Highlight word changes between two local files",
	Long: `Highlight word changes between two local files without a server.

By default the two sides are printed with removed words in red and
added words in green. With --plain the spans and stats are printed in
the --output format instead.

Examples:
  promptshelf diff v1.txt v2.txt
  promptshelf diff v1.txt v2.txt --mode aligned
  promptshelf diff v1.txt v2.txt --plain -o json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := highlight.ParseMode(diffMode)
		if err != nil {
			return err
		}
		oldText, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		newText, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}

		res := highlight.ComputeMode(mode, string(oldText), string(newText))
		stats := res.Stats()

		if diffPlain {
			return api.Output(map[string]any{
				"mode":   mode,
				"result": res,
				"stats":  stats,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "--- %s\n", args[0])
		fmt.Fprintln(out, highlight.RenderANSI(res.Old))
		fmt.Fprintf(out, "+++ %s\n", args[1])
		fmt.Fprintln(out, highlight.RenderANSI(res.New))
		fmt.Fprintf(out, "\n%d unchanged, %d removed, %d added\n", stats.Unchanged, stats.Removed, stats.Added)
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffMode, "mode", string(highlight.ModePositional), "Alignment mode: positional or aligned")
	diffCmd.Flags().BoolVar(&diffPlain, "plain", false, "Print spans and stats instead of colored text")

	rootCmd.AddCommand(diffCmd)
}
