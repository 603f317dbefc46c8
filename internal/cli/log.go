package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <username> <action>",
	Short: "Append an entry to the activity log",
	Long: `Append an activity log entry for a user. Entries feed the detection
pipeline on its next sweep.

Examples:
  honeytrap log spammer42 "Commented on post Hello: BUY NOW"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	action := strings.Join(args[1:], " ")
	if err := apiClient.LogAction(context.Background(), args[0], action); err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	fmt.Println("Logged.")
	return nil
}
