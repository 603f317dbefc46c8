package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/honeytrap/internal/client"
)

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "Drive friend requests between accounts",
	Long: `Send, withdraw, accept or reject friend requests, or show an account's
friends. Repeating an operation that already took effect is a no-op.

Examples:
  honeytrap friends show alice
  honeytrap friends send crypto_fan_42 alice
  honeytrap friends accept alice crypto_fan_42
  honeytrap friends withdraw crypto_fan_42 alice`,
}

func init() {
	friendsCmd.AddCommand(
		friendsShowCmd,
		friendCommand(client.FriendSend, "send <from> <to>", "Send a friend request"),
		friendCommand(client.FriendWithdraw, "withdraw <from> <to>", "Withdraw a pending friend request"),
		friendCommand(client.FriendAccept, "accept <username> <from>", "Accept a pending friend request"),
		friendCommand(client.FriendReject, "reject <username> <from>", "Reject a pending friend request"),
	)
}

var friendsShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show friends and pending requests of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fl, err := apiClient.ListFriends(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list friends: %w", err)
		}
		fmt.Printf("%s\n", fl.Username)
		fmt.Printf("  Friends (%d): %s\n", len(fl.Friends), strings.Join(fl.Friends, ", "))
		fmt.Printf("  Pending requests (%d): %s\n", len(fl.FriendRequests), strings.Join(fl.FriendRequests, ", "))
		return nil
	},
}

func friendCommand(op client.FriendOp, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := apiClient.Friend(context.Background(), op, args[0], args[1])
			if err != nil {
				return fmt.Errorf("%s friend request: %w", op, err)
			}
			if changed {
				fmt.Println("Done.")
			} else {
				fmt.Println("Nothing to change.")
			}
			return nil
		},
	}
}
