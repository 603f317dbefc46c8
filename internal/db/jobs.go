package db

import (
	"context"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// SaveJob persists a pending one-shot scheduler job.
func (c *Client) SaveJob(ctx context.Context, job models.PendingJob) error {
	args := job.Args
	if args == nil {
		args = map[string]string{}
	}
	_, err := query[any](ctx, c, `
		UPSERT type::record("pending_job", $job_id) CONTENT {
			job_id: $job_id,
			action: $action,
			args: $args,
			fire_at: $fire_at,
			grace: $grace,
			created: $created
		}
	`, map[string]any{
		"job_id":  job.JobID,
		"action":  job.Action,
		"args":    args,
		"fire_at": job.FireAt,
		"grace":   int64(job.Grace),
		"created": job.Created,
	})
	if err != nil {
		return storeErr("save job", err)
	}
	return nil
}

// DeleteJob removes a pending job. Deleting a missing job is not an error.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	_, err := query[any](ctx, c, `DELETE type::record("pending_job", $job_id)`, map[string]any{"job_id": jobID})
	if err != nil {
		return storeErr("delete job", err)
	}
	return nil
}

// ListJobs returns all pending jobs ordered by fire time.
func (c *Client) ListJobs(ctx context.Context) ([]models.PendingJob, error) {
	res, err := query[[]models.PendingJob](ctx, c, `
		SELECT job_id, action, args, fire_at, grace, created FROM pending_job ORDER BY fire_at
	`, nil)
	if err != nil {
		return nil, storeErr("list jobs", err)
	}
	return rows(res), nil
}
