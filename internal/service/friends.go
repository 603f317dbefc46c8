package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/content"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
)

// FriendService drives the friend-request state machine
// none → requested → accepted, with reject and withdraw back to none.
// Every transition is a conditional store update; a transition that no longer
// applies reports changed=false instead of an error.
type FriendService struct {
	store    Store
	sched    *scheduler.Scheduler
	gen      *content.Generator
	activity *activityLog

	acceptDelay time.Duration
	persist     bool
}

// NewFriendService creates a new friend service.
func NewFriendService(store Store, sched *scheduler.Scheduler, gen *content.Generator, activity *activityLog, opts Options) *FriendService {
	return &FriendService{
		store:       store,
		sched:       sched,
		gen:         gen,
		activity:    activity,
		acceptDelay: orDefault(opts.AcceptDelay, 20*time.Second),
		persist:     opts.PersistJobs,
	}
}

// SendFromDecoy sends a request from sender to a random other decoy and
// schedules the target's delayed auto-accept. target is empty when there
// is no other decoy.
func (s *FriendService) SendFromDecoy(ctx context.Context, sender string) (target string, changed bool, err error) {
	candidates, err := s.store.ListDecoyUsernames(ctx, sender)
	if err != nil {
		return "", false, err
	}
	if len(candidates) == 0 {
		slog.Debug("no other decoy to befriend", "username", sender)
		return "", false, nil
	}
	target = candidates[s.gen.IntN(len(candidates))]

	changed, err = s.Send(ctx, sender, target)
	if err != nil || !changed {
		return target, changed, err
	}
	s.scheduleAccept(ctx, target, sender)
	return target, true, nil
}

// Send adds sender to target's pending requests unless they are already
// friends or a request is already pending.
func (s *FriendService) Send(ctx context.Context, sender, target string) (bool, error) {
	if err := validatePair(sender, target, "sender", "target"); err != nil {
		return false, err
	}
	changed, err := s.store.AddFriendRequest(ctx, sender, target)
	if err != nil {
		return false, fmt.Errorf("send friend request: %w", err)
	}
	if changed {
		s.activity.record(ctx, sender, "Sent friend request to "+target)
	}
	return changed, nil
}

// Withdraw pulls sender's pending request to target.
func (s *FriendService) Withdraw(ctx context.Context, sender, target string) (bool, error) {
	if err := validatePair(sender, target, "sender", "target"); err != nil {
		return false, err
	}
	changed, err := s.store.WithdrawFriendRequest(ctx, sender, target)
	if err != nil {
		return false, fmt.Errorf("withdraw friend request: %w", err)
	}
	return changed, nil
}

// Accept makes user and friend mutual friends if friend's request to user is
// still pending. An already withdrawn or accepted request is a no-op.
func (s *FriendService) Accept(ctx context.Context, user, friend string) (bool, error) {
	if err := validatePair(user, friend, "username", "friend"); err != nil {
		return false, err
	}
	changed, err := s.store.AcceptFriendRequest(ctx, user, friend)
	if err != nil {
		return false, fmt.Errorf("accept friend request: %w", err)
	}
	if changed {
		s.activity.record(ctx, user, "Accepted friend request from "+friend)
	} else {
		slog.Debug("friend request no longer pending", "username", user, "friend", friend)
	}
	return changed, nil
}

// Reject drops friend's pending request to user.
func (s *FriendService) Reject(ctx context.Context, user, friend string) (bool, error) {
	if err := validatePair(user, friend, "username", "friend"); err != nil {
		return false, err
	}
	changed, err := s.store.RejectFriendRequest(ctx, user, friend)
	if err != nil {
		return false, fmt.Errorf("reject friend request: %w", err)
	}
	return changed, nil
}

// scheduleAccept enqueues user's delayed acceptance of friend's request. The
// request itself is already stored, so scheduling failures are only logged.
func (s *FriendService) scheduleAccept(ctx context.Context, user, friend string) {
	if s.sched == nil {
		return
	}
	_, err := s.sched.Submit(ctx, scheduler.Job{
		ID:      fmt.Sprintf("accept:%s:%s", user, friend),
		Kind:    scheduler.OneShot,
		Action:  ActionAcceptFriendRequest,
		Args:    map[string]string{ArgUsername: user, ArgFriend: friend},
		FireAt:  time.Now().Add(s.acceptDelay),
		Persist: s.persist,
	})
	if err != nil && !errors.Is(err, scheduler.ErrJobExists) {
		slog.Warn("failed to schedule auto-accept", "username", user, "friend", friend, "error", err)
	}
}
