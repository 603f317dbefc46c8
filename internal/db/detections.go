package db

import (
	"context"
	"errors"
	"slices"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// maxConflictRetries bounds retries of the detection upsert when concurrent
// writers to the same record collide.
const maxConflictRetries = 3

type detectionBefore struct {
	Reasons []string `json:"reasons"`
}

// RecordDetection is a single UPSERT keyed by username, so the create-or-
// append decision is made against the stored document itself. The
// last_detected_at assignment comes first so it still sees the old reasons.
func (c *Client) RecordDetection(ctx context.Context, username, reason string) (bool, error) {
	vars := map[string]any{"username": username, "reason": reason}

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		res, qerr := query[[]*detectionBefore](ctx, c, `
			UPSERT type::record("detection", $username) SET
				username = $username,
				first_detected_at = first_detected_at ?? time::now(),
				last_detected_at = IF $reason INSIDE (reasons ?? []) THEN last_detected_at ELSE time::now() END,
				reasons = IF $reason INSIDE (reasons ?? []) THEN reasons ELSE array::append(reasons ?? [], $reason) END
			RETURN BEFORE
		`, vars)
		if qerr == nil {
			before, _ := first(res)
			return before == nil || !slices.Contains(before.Reasons, reason), nil
		}
		err = storeErr("record detection", qerr)
		if !errors.Is(err, models.ErrConflict) {
			return false, err
		}
	}
	return false, err
}

// ListDetections returns all records, most recently detected first.
func (c *Client) ListDetections(ctx context.Context) ([]models.DetectionRecord, error) {
	res, err := query[[]models.DetectionRecord](ctx, c, `
		SELECT * FROM detection ORDER BY last_detected_at DESC, username
	`, nil)
	if err != nil {
		return nil, storeErr("list detections", err)
	}
	return rows(res), nil
}
