package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [username]",
	Short: "List decoys or show one decoy",
	Long: `List all decoy accounts, or show a single decoy with its friends and
pending friend requests.

Examples:
  honeytrap list
  honeytrap list -v
  honeytrap list crypto_fan_42`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showDecoy(ctx, args[0])
	}

	decoys, err := apiClient.ListDecoys(ctx)
	if err != nil {
		return fmt.Errorf("list decoys: %w", err)
	}

	if len(decoys) == 0 {
		fmt.Println("No decoys found.")
		return nil
	}

	fmt.Printf("Decoys (%d):\n\n", len(decoys))
	for _, d := range decoys {
		fmt.Printf("- %s (%d friends, %d pending)\n", d.Username, len(d.Friends), len(d.FriendRequests))
		if verbose {
			fmt.Printf("  Purpose: %s\n", d.Purpose)
			fmt.Printf("  Email: %s\n", d.Email)
		}
	}

	return nil
}

func showDecoy(ctx context.Context, username string) error {
	d, err := apiClient.GetDecoy(ctx, username)
	if err != nil {
		return fmt.Errorf("get decoy: %w", err)
	}

	fmt.Printf("Decoy: %s\n", d.Username)
	fmt.Printf("  Email: %s\n", d.Email)
	fmt.Printf("  Purpose: %s\n", d.Purpose)
	fmt.Printf("  Created: %s\n", d.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(d.Friends) > 0 {
		fmt.Printf("  Friends: %v\n", d.Friends)
	}
	if len(d.FriendRequests) > 0 {
		fmt.Printf("  Pending requests: %v\n", d.FriendRequests)
	}
	return nil
}
