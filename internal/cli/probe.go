package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/honeytrap/internal/client"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run conversational probes",
	Long: `A probe is a short conversation between a decoy and another account.
After enough turns the conversation is classified as genuine, suspicious,
fraud or bot.

Examples:
  honeytrap probe start crypto_fan_42 alice
  honeytrap probe send crypto_fan_42 alice "hey, want to make some money?"
  honeytrap probe result crypto_fan_42 alice
  honeytrap probe chat crypto_fan_42 alice`,
}

var probeStartCmd = &cobra.Command{
	Use:   "start <decoy> <counterpart>",
	Short: "Open a probe and print the decoy's opening line",
	Args:  cobra.ExactArgs(2),
	RunE:  runProbeStart,
}

var probeSendCmd = &cobra.Command{
	Use:   "send <decoy> <counterpart> <message>",
	Short: "Send one message as the counterpart",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runProbeSend,
}

var probeResultCmd = &cobra.Command{
	Use:   "result <decoy> <counterpart>",
	Short: "Show a probe's transcript and verdict",
	Args:  cobra.ExactArgs(2),
	RunE:  runProbeResult,
}

var probeChatCmd = &cobra.Command{
	Use:   "chat <decoy> <counterpart>",
	Short: "Chat live as the counterpart until the probe is classified",
	Args:  cobra.ExactArgs(2),
	RunE:  runProbeChat,
}

func init() {
	probeCmd.AddCommand(probeStartCmd, probeSendCmd, probeResultCmd, probeChatCmd)
}

func runProbeStart(cmd *cobra.Command, args []string) error {
	s, err := apiClient.StartProbe(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("start probe: %w", err)
	}
	fmt.Printf("%s: %s\n", s.Initiator, s.Opening)
	if s.Status == models.SessionCompleted {
		printVerdict(s)
	}
	return nil
}

func runProbeSend(cmd *cobra.Command, args []string) error {
	message := strings.Join(args[2:], " ")
	res, err := apiClient.SendProbeMessage(context.Background(), args[0], args[1], message)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if res.Reply != "" {
		fmt.Printf("%s: %s\n", args[0], res.Reply)
	}
	if res.Session != nil && res.Session.Status == models.SessionCompleted {
		printVerdict(res.Session)
	}
	return nil
}

func runProbeResult(cmd *cobra.Command, args []string) error {
	s, err := apiClient.ProbeResult(context.Background(), args[0], args[1])
	if err != nil {
		if client.IsNotFound(err) {
			return fmt.Errorf("no probe between %s and %s", args[0], args[1])
		}
		return fmt.Errorf("get probe: %w", err)
	}

	fmt.Printf("%s: %s\n", s.Initiator, s.Opening)
	for _, t := range s.History {
		who := s.Counterpart
		if t.IsDecoy {
			who = s.Initiator
		}
		fmt.Printf("%s: %s\n", who, t.Message)
	}
	fmt.Println()
	if s.Status == models.SessionCompleted {
		printVerdict(s)
	} else {
		fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("Ongoing (%d turns)", len(s.History))))
	}
	return nil
}

func runProbeChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	decoy := args[0]
	in := bufio.NewScanner(os.Stdin)
	prompt := interactive()

	next := func() (string, bool) {
		for {
			if prompt {
				fmt.Print(defaultTheme.statusStyle().Render("> "))
			}
			if !in.Scan() {
				return "", false
			}
			if line := strings.TrimSpace(in.Text()); line != "" {
				return line, true
			}
		}
	}

	onFrame := func(f client.ProbeFrame) error {
		switch f.Type {
		case client.FrameSession, client.FrameReply:
			fmt.Printf("%s: %s\n", decoy, f.Message)
		case client.FrameError:
			fmt.Println(defaultTheme.errorStyle().Render(f.Error))
		}
		return nil
	}

	result, err := apiClient.ProbeChat(ctx, decoy, args[1], next, onFrame)
	if err != nil {
		return fmt.Errorf("probe chat: %w", err)
	}
	if result != "" {
		fmt.Println(verdictStyle(result).Render("Verdict: " + result))
	}
	return nil
}

func printVerdict(s *models.ConversationSession) {
	if s.Result == nil {
		return
	}
	fmt.Println(verdictStyle(*s.Result).Render("Verdict: " + *s.Result))
}
