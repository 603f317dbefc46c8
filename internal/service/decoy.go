package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/content"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
)

// MaxPurposeLen bounds the free-text purpose of a decoy.
const MaxPurposeLen = 500

// usernameAttempts bounds the suffix retries on a taken username.
const usernameAttempts = 5

// DecoyService creates decoys and registers their behavior campaigns.
type DecoyService struct {
	store  Store
	oracle Oracle
	sched  *scheduler.Scheduler
	gen    *content.Generator
	opts   Options

	wg sync.WaitGroup
}

// NewDecoyService creates a new decoy service.
func NewDecoyService(store Store, oracle Oracle, sched *scheduler.Scheduler, gen *content.Generator, opts Options) *DecoyService {
	return &DecoyService{store: store, oracle: oracle, sched: sched, gen: gen, opts: opts}
}

// Create validates purpose, generates an identity and stores it. Campaign
// registration happens in the background; Create does not wait for it.
func (s *DecoyService) Create(ctx context.Context, purpose string) (*models.Decoy, error) {
	purpose = strings.TrimSpace(purpose)
	if purpose == "" {
		return nil, &models.ValidationError{Field: "purpose", Reason: "must not be empty"}
	}
	if len(purpose) > MaxPurposeLen {
		return nil, &models.ValidationError{Field: "purpose", Reason: "must be at most " + strconv.Itoa(MaxPurposeLen) + " characters"}
	}

	base := s.username(ctx, purpose)
	input := models.DecoyInput{Username: base, Email: s.gen.Email(), Purpose: purpose}

	var decoy *models.Decoy
	var err error
	for attempt := range usernameAttempts {
		if attempt > 0 {
			input.Username = withSuffix(base, s.gen.RandomString(4))
		}
		decoy, err = s.store.CreateDecoy(ctx, input)
		if !errors.Is(err, models.ErrAlreadyExists) {
			break
		}
		slog.Debug("decoy username taken", "username", input.Username, "attempt", attempt+1)
	}
	if err != nil {
		return nil, fmt.Errorf("create decoy: %w", err)
	}

	slog.Info("decoy created", "username", decoy.Username, "purpose", purpose)

	if s.sched != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.registerCampaigns(context.WithoutCancel(ctx), decoy.Username, true)
		}()
	}
	return decoy, nil
}

// Wait blocks until background campaign registrations have finished.
func (s *DecoyService) Wait() {
	s.wg.Wait()
}

// Get returns one decoy.
func (s *DecoyService) Get(ctx context.Context, username string) (*models.Decoy, error) {
	return s.store.GetDecoy(ctx, username)
}

// List returns every decoy.
func (s *DecoyService) List(ctx context.Context) ([]models.Decoy, error) {
	return s.store.ListDecoys(ctx)
}

// ResumeCampaigns re-registers the interval campaigns of every stored decoy.
// One-shot post jobs are not replayed; persisted ones come back through the
// scheduler's own store.
func (s *DecoyService) ResumeCampaigns(ctx context.Context) error {
	names, err := s.store.ListDecoyUsernames(ctx, "")
	if err != nil {
		return fmt.Errorf("resume campaigns: %w", err)
	}
	for _, name := range names {
		s.registerCampaigns(ctx, name, false)
	}
	if len(names) > 0 {
		slog.Info("resumed decoy campaigns", "decoys", len(names))
	}
	return nil
}

// username asks the oracle for a handle and falls back to one derived from
// the purpose when the answer is unusable.
func (s *DecoyService) username(ctx context.Context, purpose string) string {
	prompt := fmt.Sprintf(
		"Suggest one realistic social media username for an account interested in: %s. "+
			"Use only letters, digits, underscores or dots, 3 to 30 characters. Reply with the username only.",
		purpose)

	text, err := s.oracle.Generate(ctx, prompt, nil)
	if err != nil {
		slog.Debug("username oracle failed, using fallback", "error", err)
		return content.FallbackUsername(purpose)
	}
	name := strings.TrimPrefix(content.FirstLine(text), "@")
	if !content.ValidUsername(name) {
		slog.Debug("oracle username rejected, using fallback", "username", name)
		return content.FallbackUsername(purpose)
	}
	return name
}

// withSuffix appends _<suffix> keeping the result within the username limit.
func withSuffix(base, suffix string) string {
	if limit := content.MaxUsernameLen - len(suffix) - 1; len(base) > limit {
		base = base[:limit]
	}
	return base + "_" + suffix
}

// registerCampaigns submits the post, friend-request and interaction jobs for
// a decoy. Posts are only scheduled for new decoys.
func (s *DecoyService) registerCampaigns(ctx context.Context, username string, posts bool) {
	args := map[string]string{ArgUsername: username}

	if posts {
		for i := range s.opts.PostJobs {
			s.submit(ctx, scheduler.Job{
				ID:      fmt.Sprintf("post:%s:%d", username, i),
				Kind:    scheduler.OneShot,
				Action:  ActionCreatePost,
				Args:    args,
				FireAt:  time.Now().Add(s.postDelay()),
				Persist: s.opts.PersistJobs,
			})
		}
	}

	s.submit(ctx, scheduler.Job{
		ID:     "friend:" + username,
		Kind:   scheduler.Interval,
		Action: ActionSendFriendRequest,
		Args:   args,
		Every:  orDefault(s.opts.FriendInterval, time.Minute),
	})
	s.submit(ctx, scheduler.Job{
		ID:     "interact:" + username,
		Kind:   scheduler.Interval,
		Action: ActionInteract,
		Args:   args,
		Every:  orDefault(s.opts.InteractInterval, 2*time.Minute),
	})
}

func (s *DecoyService) submit(ctx context.Context, job scheduler.Job) {
	if _, err := s.sched.Submit(ctx, job); err != nil && !errors.Is(err, scheduler.ErrJobExists) {
		slog.Warn("failed to schedule decoy job", "job_id", job.ID, "action", job.Action, "error", err)
	}
}

// postDelay draws a whole-second delay in [PostDelayMin, PostDelayMax].
func (s *DecoyService) postDelay() time.Duration {
	lo := orDefault(s.opts.PostDelayMin, time.Minute)
	hi := orDefault(s.opts.PostDelayMax, 2*time.Minute)
	if hi <= lo {
		return lo
	}
	span := int((hi - lo) / time.Second)
	return lo + time.Duration(s.gen.IntN(span+1))*time.Second
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
