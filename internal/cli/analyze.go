package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a detection sweep now",
	Long: `Run every analyzer over the recent activity log and record the
resulting flags. The server also does this on a schedule.

Examples:
  honeytrap analyze
  honeytrap analyze comment 3f9c2b`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

var analyzeCommentCmd = &cobra.Command{
	Use:   "comment <comment-id>",
	Short: "Screen a comment on a decoy's post",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyzeComment,
}

func init() {
	analyzeCmd.AddCommand(analyzeCommentCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	res, err := apiClient.Analyze(context.Background())
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	fmt.Printf("Scanned %d log entries, %d signals, %d new flags.\n", res.Entries, len(res.Signals), res.Recorded)
	if verbose {
		for _, s := range res.Signals {
			fmt.Printf("- %s: %s (%s)\n", s.Username, s.Reason, s.Analyzer)
		}
	}
	return nil
}

func runAnalyzeComment(cmd *cobra.Command, args []string) error {
	v, err := apiClient.CheckComment(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("check comment: %w", err)
	}

	msg := v.Message
	switch {
	case v.Suspicious:
		msg = defaultTheme.errorStyle().Render(msg)
	case v.Honeytrap:
		msg = defaultTheme.completedStyle().Render(msg)
	}
	fmt.Printf("%s (author %s)\n", msg, v.Author)
	return nil
}
