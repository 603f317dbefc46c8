package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/detect"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

// DefaultLogWindow is the number of most recent log entries a sweep reads.
const DefaultLogWindow = 10000

// DetectionService runs the batch analyzers and is the single write path
// into the detection registry.
type DetectionService struct {
	store     Store
	screen    *detect.CommentScreen
	analyzers []detect.Analyzer
	activity  *activityLog
	metrics   *metrics.Collector
	window    int
}

// NewDetectionService creates a detection service running the default
// analyzers over the last window log entries.
func NewDetectionService(store Store, oracle Oracle, activity *activityLog, mc *metrics.Collector, window int) *DetectionService {
	if window <= 0 {
		window = DefaultLogWindow
	}
	return &DetectionService{
		store:     store,
		screen:    detect.NewCommentScreen(oracle),
		analyzers: detect.Default(),
		activity:  activity,
		metrics:   mc,
		window:    window,
	}
}

// Record adds reason to username's detection record, creating it if needed.
// Reports whether the registry changed.
func (s *DetectionService) Record(ctx context.Context, username, reason string) (bool, error) {
	if strings.TrimSpace(username) == "" {
		return false, &models.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if strings.TrimSpace(reason) == "" {
		return false, &models.ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	changed, err := s.store.RecordDetection(ctx, username, reason)
	if err != nil {
		return false, fmt.Errorf("record detection: %w", err)
	}
	if changed {
		s.metrics.RecordDetection(reason)
		slog.Warn("user flagged", "username", username, "reason", reason)
	}
	return changed, nil
}

// SweepResult summarises one detection sweep.
type SweepResult struct {
	Entries  int             `json:"entries"`
	Signals  []detect.Signal `json:"signals"`
	Recorded int             `json:"recorded"`
}

// Sweep runs every analyzer over the recent log and records each signal.
// Individual record failures are logged and do not abort the sweep.
func (s *DetectionService) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	defer func() { s.metrics.RecordTiming(metrics.OpSweep, time.Since(start)) }()

	entries, err := s.store.ListLogs(ctx, models.LogFilter{Limit: s.window})
	if err != nil {
		return nil, fmt.Errorf("load activity log: %w", err)
	}

	signals := detect.Run(entries, s.analyzers...)
	result := &SweepResult{Entries: len(entries), Signals: signals}

	var errs []error
	for _, sig := range signals {
		changed, err := s.Record(ctx, sig.Username, sig.Reason)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			result.Recorded++
		}
	}

	slog.Info("detection sweep complete",
		"entries", result.Entries,
		"signals", len(signals),
		"recorded", result.Recorded,
		"duration_ms", time.Since(start).Milliseconds())

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

// ListDetected returns the registry ordered by most recent detection. With
// usernamesOnly every record is projected down to its username.
func (s *DetectionService) ListDetected(ctx context.Context, usernamesOnly bool) ([]models.DetectionRecord, error) {
	records, err := s.store.ListDetections(ctx)
	if err != nil {
		return nil, err
	}
	if usernamesOnly {
		for i := range records {
			records[i] = models.DetectionRecord{Username: records[i].Username}
		}
	}
	return records, nil
}

// CommentVerdict is the outcome of screening one comment.
type CommentVerdict struct {
	CommentID  string `json:"comment_id"`
	Author     string `json:"author"`
	Honeytrap  bool   `json:"honeytrap"`
	Suspicious bool   `json:"suspicious"`
	Message    string `json:"message"`
}

// CheckComment screens a comment left on a decoy's post. Comments on other
// posts are not screened. When the oracle is unavailable the spam patterns
// decide instead.
func (s *DetectionService) CheckComment(ctx context.Context, commentID string) (*CommentVerdict, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	post, err := s.store.GetPost(ctx, comment.PostID)
	if err != nil {
		return nil, err
	}

	verdict := &CommentVerdict{CommentID: commentID, Author: comment.AuthorID}
	if _, err := s.store.GetDecoy(ctx, post.AuthorID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			verdict.Message = "Not a honeytrap post"
			return verdict, nil
		}
		return nil, err
	}
	verdict.Honeytrap = true

	suspicious, err := s.screen.Suspicious(ctx, post.Title, post.Content, comment.Content)
	if err != nil {
		slog.Warn("comment screen failed, using spam patterns", "comment_id", commentID, "error", err)
		suspicious = detect.IsSpammy(comment.Content)
	}
	verdict.Suspicious = suspicious

	if !suspicious {
		verdict.Message = "User is genuine"
		return verdict, nil
	}

	verdict.Message = "Suspicious user detected"
	s.activity.record(ctx, comment.AuthorID, "Suspicious comment on honeytrap post: "+post.Title)
	if _, err := s.Record(ctx, comment.AuthorID, detect.ReasonSuspiciousComment); err != nil {
		return verdict, err
	}
	return verdict, nil
}
