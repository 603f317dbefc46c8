package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/honeytrap/internal/client"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect scheduled jobs",
	Long: `List all scheduled behavior jobs or inspect a specific job by ID.

Examples:
  honeytrap jobs                       # List all jobs
  honeytrap jobs friend:crypto_fan_42  # Show details for one job`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	jobs, err := apiClient.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	// If job ID provided, show that specific job
	if len(args) == 1 {
		for _, job := range jobs {
			if job.ID == args[0] {
				printJob(job)
				return nil
			}
		}
		return fmt.Errorf("job not found: %s", args[0])
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-36s %-24s %-9s %-6s %s\n", "ID", "ACTION", "KIND", "RUNS", "NEXT RUN")
	fmt.Println("--------------------------------------------------------------------------------------------")

	for _, job := range jobs {
		next := job.NextRun.Format("15:04:05")
		if job.Running {
			next = "running"
		}
		fmt.Printf("%-36s %-24s %-9s %-6d %s\n", job.ID, job.Action, job.Kind, job.Runs, next)
	}

	return nil
}

func printJob(job client.Job) {
	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Action: %s\n", job.Action)
	fmt.Printf("  Kind: %s\n", job.Kind)
	if job.Every > 0 {
		fmt.Printf("  Every: %s\n", job.Every)
	}
	for k, v := range job.Args {
		fmt.Printf("  Arg %s: %s\n", k, v)
	}
	fmt.Printf("  Next run: %s\n", job.NextRun.Format(time.RFC3339))
	fmt.Printf("  Persisted: %t\n", job.Persisted)
	fmt.Printf("  Runs: %d (misfires %d, failures %d)\n", job.Runs, job.Misfires, job.Failures)
	if job.LastError != "" {
		fmt.Printf("  Last error: %s\n", job.LastError)
	}
}
