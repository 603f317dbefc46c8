// Package service provides the honeytrap business logic: decoy creation,
// scheduled decoy behavior, friend requests, detection and the
// conversational probe.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/config"
	"github.com/raphaelgruber/honeytrap/internal/content"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
)

// Scheduler actions handled by BehaviorService.
const (
	ActionCreatePost          = "create_post"
	ActionSendFriendRequest   = "send_friend_request"
	ActionAcceptFriendRequest = "accept_friend_request"
	ActionInteract            = "interact"
	ActionAnalyze             = "analyze"
)

// Job argument keys.
const (
	ArgUsername = "username"
	ArgFriend   = "friend"
)

// AnalyzeJobID is the id of the recurring detection sweep.
const AnalyzeJobID = "analyze"

// Options tunes campaign timings and probe pacing.
type Options struct {
	PostJobs         int
	PostDelayMin     time.Duration
	PostDelayMax     time.Duration
	FriendInterval   time.Duration
	InteractInterval time.Duration
	AnalyzeInterval  time.Duration
	AcceptDelay      time.Duration
	PersistJobs      bool

	LogWindow      int
	TypingCPS      int
	MaxTypingDelay time.Duration

	// Sleep waits out the probe typing delay. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// OptionsFromConfig copies the service settings out of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		PostJobs:         cfg.PostJobs,
		PostDelayMin:     cfg.PostDelayMin,
		PostDelayMax:     cfg.PostDelayMax,
		FriendInterval:   cfg.FriendInterval,
		InteractInterval: cfg.InteractInterval,
		AnalyzeInterval:  cfg.AnalyzeInterval,
		AcceptDelay:      cfg.AcceptDelay,
		PersistJobs:      cfg.PersistJobs,
		LogWindow:        cfg.LogWindow,
		TypingCPS:        cfg.TypingCPS,
		MaxTypingDelay:   cfg.MaxTypingDelay,
	}
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store     Store
	Oracle    Oracle
	Scheduler *scheduler.Scheduler
	Generator *content.Generator
	Metrics   *metrics.Collector
	Options   Options
}

// Services bundles the honeytrap services behind the operations exposed to
// the HTTP surface.
type Services struct {
	Decoys    *DecoyService
	Behavior  *BehaviorService
	Friends   *FriendService
	Detection *DetectionService
	Probe     *ProbeService
	Accounts  *AccountService

	store     Store
	scheduler *scheduler.Scheduler
	metrics   *metrics.Collector
	activity  *activityLog
	opts      Options
}

// New wires the services together and registers the job handlers on the
// scheduler. The scheduler is not started.
func New(d Deps) *Services {
	if d.Generator == nil {
		d.Generator = content.NewGenerator(nil)
	}
	act := &activityLog{store: d.Store}

	detection := NewDetectionService(d.Store, d.Oracle, act, d.Metrics, d.Options.LogWindow)
	friends := NewFriendService(d.Store, d.Scheduler, d.Generator, act, d.Options)
	decoys := NewDecoyService(d.Store, d.Oracle, d.Scheduler, d.Generator, d.Options)
	behavior := NewBehaviorService(d.Store, d.Oracle, d.Generator, act, friends, detection)
	probe := NewProbeService(d.Store, d.Oracle, d.Generator, act, detection, d.Metrics, d.Options)

	if d.Scheduler != nil {
		behavior.Register(d.Scheduler)
	}

	return &Services{
		Decoys:    decoys,
		Behavior:  behavior,
		Friends:   friends,
		Detection: detection,
		Probe:     probe,
		Accounts:  NewAccountService(d.Store),
		store:     d.Store,
		scheduler: d.Scheduler,
		metrics:   d.Metrics,
		activity:  act,
		opts:      d.Options,
	}
}

// Schedule submits the recurring detection sweep and re-registers the
// interval campaigns of every stored decoy.
func (s *Services) Schedule(ctx context.Context) error {
	if s.scheduler == nil {
		return nil
	}
	every := s.opts.AnalyzeInterval
	if every <= 0 {
		every = 3 * time.Minute
	}
	_, err := s.scheduler.Submit(ctx, scheduler.Job{
		ID:     AnalyzeJobID,
		Kind:   scheduler.Interval,
		Action: ActionAnalyze,
		Every:  every,
	})
	if err != nil && !errors.Is(err, scheduler.ErrJobExists) {
		return fmt.Errorf("schedule analysis: %w", err)
	}
	return s.Decoys.ResumeCampaigns(ctx)
}

// CreateDecoy creates a decoy and starts its campaigns.
func (s *Services) CreateDecoy(ctx context.Context, purpose string) (*models.Decoy, error) {
	return s.Decoys.Create(ctx, purpose)
}

// ListDecoys returns every decoy.
func (s *Services) ListDecoys(ctx context.Context) ([]models.Decoy, error) {
	return s.Decoys.List(ctx)
}

// ListDetected returns the detection registry, most recent first.
func (s *Services) ListDetected(ctx context.Context, usernamesOnly bool) ([]models.DetectionRecord, error) {
	return s.Detection.ListDetected(ctx, usernamesOnly)
}

// StartProbe opens (or reuses) the conversation for a pair.
func (s *Services) StartProbe(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	return s.Probe.Start(ctx, initiator, counterpart)
}

// FeedProbeMessage delivers a counterpart message and returns the decoy reply.
func (s *Services) FeedProbeMessage(ctx context.Context, initiator, counterpart, message string) (*FeedResult, error) {
	return s.Probe.Feed(ctx, initiator, counterpart, message)
}

// GetProbeResult returns the session for a pair.
func (s *Services) GetProbeResult(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	return s.Probe.Result(ctx, initiator, counterpart)
}

// CreateAccount provisions a regular, non-decoy account.
func (s *Services) CreateAccount(ctx context.Context, username, email string) (*models.Account, error) {
	return s.Accounts.Create(ctx, username, email)
}

// GetAccount returns an account with its posts.
func (s *Services) GetAccount(ctx context.Context, username string) (*AccountProfile, error) {
	return s.Accounts.Get(ctx, username)
}

// ListFriends returns the friends and pending requests of an account.
func (s *Services) ListFriends(ctx context.Context, username string) (*FriendList, error) {
	return s.Accounts.Friends(ctx, username)
}

// LogAction records an action by a real user so the analyzers see it.
func (s *Services) LogAction(ctx context.Context, username, action string) error {
	username = strings.TrimSpace(username)
	action = strings.TrimSpace(action)
	if username == "" {
		return &models.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if action == "" {
		return &models.ValidationError{Field: "action", Reason: "must not be empty"}
	}
	return s.activity.append(ctx, username, action)
}

// SchedulerStats summarises the scheduler's working set.
type SchedulerStats struct {
	Jobs      int   `json:"jobs"`
	Running   int   `json:"running"`
	Persisted int   `json:"persisted"`
	Runs      int64 `json:"runs"`
	Misfires  int64 `json:"misfires"`
	Failures  int64 `json:"failures"`
}

// Stats is the aggregate view served by the stats endpoint.
type Stats struct {
	models.Statistics
	Scheduler SchedulerStats    `json:"scheduler"`
	Runtime   *metrics.Snapshot `json:"runtime,omitempty"`
}

// GetStatistics combines store counts with scheduler and runtime state.
func (s *Services) GetStatistics(ctx context.Context) (*Stats, error) {
	counts, err := s.store.Statistics(ctx)
	if err != nil {
		return nil, err
	}

	out := &Stats{Statistics: *counts}
	if s.scheduler != nil {
		for _, j := range s.scheduler.Jobs() {
			out.Scheduler.Jobs++
			if j.Running {
				out.Scheduler.Running++
			}
			if j.Persisted {
				out.Scheduler.Persisted++
			}
			out.Scheduler.Runs += j.Runs
			out.Scheduler.Misfires += j.Misfires
			out.Scheduler.Failures += j.Failures
		}
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot()
		out.Runtime = &snap
	}
	return out, nil
}

// Jobs returns the scheduler snapshot.
func (s *Services) Jobs() []scheduler.JobInfo {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Jobs()
}

// activityLog appends entries to the interaction log.
type activityLog struct {
	store Store
}

func (a *activityLog) append(ctx context.Context, username, action string) error {
	err := a.store.AppendLog(ctx, models.LogEntry{
		Username:  username,
		Action:    action,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("log action for %s: %w", username, err)
	}
	return nil
}

// record appends an entry after the action it describes already happened,
// so a failure is logged rather than returned.
func (a *activityLog) record(ctx context.Context, username, action string) {
	if err := a.append(ctx, username, action); err != nil {
		slog.Warn("failed to write activity log", "username", username, "action", action, "error", err)
	}
}

func validatePair(a, b, fieldA, fieldB string) error {
	if strings.TrimSpace(a) == "" {
		return &models.ValidationError{Field: fieldA, Reason: "must not be empty"}
	}
	if strings.TrimSpace(b) == "" {
		return &models.ValidationError{Field: fieldB, Reason: "must not be empty"}
	}
	if a == b {
		return &models.ValidationError{Field: fieldB, Reason: "must differ from " + fieldA}
	}
	return nil
}
