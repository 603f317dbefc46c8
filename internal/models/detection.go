package models

import (
	"slices"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DetectionRecord is the deduplicated evidence trail for one flagged user.
// Reasons keep insertion order and never shrink.
type DetectionRecord struct {
	ID              surrealmodels.RecordID `json:"id"`
	Username        string                 `json:"username"`
	Reasons         []string               `json:"reasons"`
	FirstDetectedAt time.Time              `json:"first_detected_at"`
	LastDetectedAt  time.Time              `json:"last_detected_at"`
}

// HasReason reports whether reason is already recorded.
func (r *DetectionRecord) HasReason(reason string) bool {
	return slices.Contains(r.Reasons, reason)
}
