package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var detectedUsernames bool

var detectedCmd = &cobra.Command{
	Use:   "detected",
	Short: "List flagged accounts",
	Long: `List every account the detection pipeline has flagged, with the
reasons collected so far.

Examples:
  honeytrap detected
  honeytrap detected --usernames`,
	Args: cobra.NoArgs,
	RunE: runDetected,
}

func init() {
	detectedCmd.Flags().BoolVarP(&detectedUsernames, "usernames", "u", false, "print usernames only")
}

func runDetected(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if detectedUsernames {
		names, err := apiClient.ListDetectedUsernames(ctx)
		if err != nil {
			return fmt.Errorf("list detected: %w", err)
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}

	records, err := apiClient.ListDetected(ctx)
	if err != nil {
		return fmt.Errorf("list detected: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No suspicious accounts detected.")
		return nil
	}

	fmt.Printf("Detected (%d):\n\n", len(records))
	for _, r := range records {
		fmt.Printf("- %s: %s\n", r.Username, strings.Join(r.Reasons, "; "))
		if verbose {
			fmt.Printf("  First: %s  Last: %s\n",
				r.FirstDetectedAt.Format("2006-01-02 15:04:05"),
				r.LastDetectedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}
