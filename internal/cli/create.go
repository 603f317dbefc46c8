package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createWatch bool

var createCmd = &cobra.Command{
	Use:   "create <purpose>",
	Short: "Create a decoy account",
	Long: `Create a decoy account for the given purpose. The server picks a
username, registers the account and schedules its post campaign,
friend requests and interactions.

Examples:
  honeytrap create "crypto investment scams"
  honeytrap create "romance scams" --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().BoolVarP(&createWatch, "watch", "w", false, "follow the post campaign until it finishes")
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	purpose := strings.Join(args, " ")

	decoy, err := apiClient.CreateDecoy(ctx, purpose)
	if err != nil {
		return fmt.Errorf("create decoy: %w", err)
	}

	fmt.Printf("Created decoy: %s\n", decoy.Username)
	if verbose {
		fmt.Printf("  Email:   %s\n", decoy.Email)
		fmt.Printf("  Purpose: %s\n", decoy.Purpose)
	}

	if !createWatch {
		return nil
	}
	if !interactive() {
		fmt.Printf("Use 'honeytrap jobs' to follow the campaign of %s.\n", decoy.Username)
		return nil
	}
	return RunCampaignProgress(apiClient, decoy.Username)
}
