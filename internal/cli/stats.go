package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/honeytrap/internal/client"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store, scheduler and runtime statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := apiClient.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	printStats(stats)
	return nil
}

func printStats(s *client.Stats) {
	fmt.Println(defaultTheme.headerStyle().Render("Store"))
	fmt.Printf("  Decoys:             %d\n", s.Decoys)
	fmt.Printf("  Accounts:           %d\n", s.Accounts)
	fmt.Printf("  Posts:              %d\n", s.Posts)
	fmt.Printf("  Comments:           %d\n", s.Comments)
	fmt.Printf("  Log entries:        %d\n", s.LogEntries)
	fmt.Printf("  Detections:         %d\n", s.Detections)
	fmt.Printf("  Sessions (open):    %d\n", s.SessionsOngoing)
	fmt.Printf("  Sessions (closed):  %d\n", s.SessionsCompleted)
	fmt.Printf("  Pending jobs:       %d\n", s.PendingJobs)

	fmt.Println()
	fmt.Println(defaultTheme.headerStyle().Render("Scheduler"))
	fmt.Printf("  Jobs:      %d (%d running, %d persisted)\n", s.Scheduler.Jobs, s.Scheduler.Running, s.Scheduler.Persisted)
	fmt.Printf("  Runs:      %d\n", s.Scheduler.Runs)
	fmt.Printf("  Misfires:  %d\n", s.Scheduler.Misfires)
	fmt.Printf("  Failures:  %d\n", s.Scheduler.Failures)

	if s.Runtime == nil {
		return
	}
	fmt.Println()
	uptime := time.Duration(s.Runtime.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Println(defaultTheme.headerStyle().Render(fmt.Sprintf("Runtime (up %s)", uptime)))
	printCounters("Jobs", s.Runtime.Jobs)
	printCounters("Detections", s.Runtime.Detections)
	printCounters("Probe results", s.Runtime.ProbeResults)
}

func printCounters(title string, counters map[string]int64) {
	if len(counters) == 0 {
		return
	}
	fmt.Printf("  %s:\n", title)
	for _, k := range slices.Sorted(maps.Keys(counters)) {
		fmt.Printf("    %-32s %d\n", k, counters[k])
	}
}
