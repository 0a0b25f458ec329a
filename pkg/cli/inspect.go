package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"fb2disqus/pkg/logging"
	"fb2disqus/pkg/wxr"
)

// maxTitleWidth caps the title column of the inspect table.
const maxTitleWidth = 50

func newInspectCommand(flags *flagValues, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize an existing WXR export",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("inspect expects exactly one FILE argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger(stderr, logging.ParseLevel(flags.logLevel))

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open export: %w", err)
			}
			defer f.Close()

			summary, err := wxr.Inspect(f)
			if err != nil {
				return err
			}
			logger.Debug("Parsed export", "file", args[0], "items", len(summary.Items))

			writeTable(stdout, summary)
			return nil
		},
	}
}

// writeTable prints one row per thread, padded by display width so titles
// with wide characters stay aligned.
func writeTable(w io.Writer, summary wxr.Summary) {
	rows := [][]string{{"THREAD", "COMMENTS", "DATE", "TITLE"}}
	for _, it := range summary.Items {
		rows = append(rows, []string{
			it.ThreadIdentifier,
			strconv.Itoa(it.Comments),
			it.PostDate,
			runewidth.Truncate(it.Title, maxTitleWidth, "…"),
		})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	for _, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			if i == len(row)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}

	fmt.Fprintf(w, "\n%d threads, %d comments\n", len(summary.Items), summary.Comments)
}
