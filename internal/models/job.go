package models

import "time"

// PendingJob is a persisted one-shot scheduler job, kept so delayed actions
// (auto-accepts, scheduled posts) survive a restart.
type PendingJob struct {
	JobID   string            `json:"job_id"`
	Action  string            `json:"action"`
	Args    map[string]string `json:"args,omitempty"`
	FireAt  time.Time         `json:"fire_at"`
	Grace   time.Duration     `json:"grace"`
	Created time.Time         `json:"created"`
}
