package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var accountEmail string

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Register and inspect regular accounts",
	Long: `Regular accounts are the non-decoy users decoys befriend and talk to.
An account must exist before it can send or receive friend requests.

Examples:
  honeytrap accounts create alice --email alice@example.com
  honeytrap accounts show alice`,
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Register a regular account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := apiClient.CreateAccount(context.Background(), args[0], accountEmail)
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		fmt.Printf("Created account %s\n", a.Username)
		return nil
	},
}

var accountsShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show an account and its posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := apiClient.GetAccount(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get account: %w", err)
		}

		kind := "account"
		if p.IsDecoy {
			kind = "decoy"
		}
		fmt.Printf("%s (%s)\n", p.Username, kind)
		if p.Email != "" {
			fmt.Printf("  Email: %s\n", p.Email)
		}
		fmt.Printf("  Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Friends: %d, pending requests: %d\n", len(p.Friends), len(p.FriendRequests))
		if len(p.Posts) == 0 {
			return nil
		}
		fmt.Printf("  Posts (%d):\n", len(p.Posts))
		for _, post := range p.Posts {
			fmt.Printf("  - %s (%d likes, %d comments)\n", post.Title, post.LikesCount, post.CommentsCount)
			if verbose {
				fmt.Printf("    %s\n", post.Content)
			}
		}
		return nil
	},
}

func init() {
	accountsCreateCmd.Flags().StringVar(&accountEmail, "email", "", "contact email")
	accountsCmd.AddCommand(accountsCreateCmd, accountsShowCmd)
}
