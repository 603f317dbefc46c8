package db

import (
	"context"
	"errors"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

func (c *Client) Statistics(ctx context.Context) (*models.Statistics, error) {
	res, err := query[models.Statistics](ctx, c, `
		RETURN {
			decoys: array::len((SELECT VALUE id FROM honeytrap)),
			accounts: array::len((SELECT VALUE id FROM account)),
			posts: array::len((SELECT VALUE id FROM post)),
			comments: array::len((SELECT VALUE id FROM comment)),
			log_entries: array::len((SELECT VALUE id FROM activity_log)),
			detections: array::len((SELECT VALUE id FROM detection)),
			sessions_ongoing: array::len((SELECT VALUE id FROM conversation WHERE status = "ongoing")),
			sessions_completed: array::len((SELECT VALUE id FROM conversation WHERE status = "completed")),
			pending_jobs: array::len((SELECT VALUE id FROM pending_job))
		}
	`, nil)
	if err != nil {
		return nil, storeErr("statistics", err)
	}
	if res == nil || len(*res) == 0 {
		return nil, storeErr("statistics", errors.New("no result returned"))
	}
	st := (*res)[0].Result
	return &st, nil
}
