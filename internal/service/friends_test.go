package service

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

func assertSymmetric(t *testing.T, h *harness, names []string) {
	t.Helper()
	ctx := context.Background()
	decoys := make(map[string]*models.Decoy, len(names))
	for _, n := range names {
		d, err := h.store.GetDecoy(ctx, n)
		require.NoError(t, err)
		decoys[n] = d
	}
	for _, a := range names {
		for _, b := range names {
			if a == b {
				continue
			}
			assert.Equal(t, decoys[a].HasFriend(b), decoys[b].HasFriend(a), "friendship %s/%s must be mutual", a, b)
		}
		for _, f := range decoys[a].Friends {
			assert.False(t, decoys[a].HasFriendRequest(f), "%s has %s as friend and pending request", a, f)
		}
	}
}

func TestFriendshipStaysSymmetric(t *testing.T) {
	h := newHarness(t, testOptions())
	names := []string{"d1", "d2", "d3", "d4"}
	h.seedDecoys(t, names...)
	ctx := context.Background()
	f := h.svc.Friends
	rng := rand.New(rand.NewPCG(7, 11))

	for range 300 {
		a := names[rng.IntN(len(names))]
		b := names[rng.IntN(len(names))]
		if a == b {
			continue
		}
		var err error
		switch rng.IntN(4) {
		case 0:
			_, err = f.Send(ctx, a, b)
		case 1:
			_, err = f.Accept(ctx, a, b)
		case 2:
			_, err = f.Reject(ctx, a, b)
		case 3:
			_, err = f.Withdraw(ctx, a, b)
		}
		require.NoError(t, err)
		assertSymmetric(t, h, names)
	}
}

func TestAcceptWithCrossedRequests(t *testing.T) {
	h := newHarness(t, testOptions())
	names := []string{"d1", "d2"}
	h.seedDecoys(t, names...)
	ctx := context.Background()

	_, err := h.svc.Friends.Send(ctx, "d1", "d2")
	require.NoError(t, err)
	_, err = h.svc.Friends.Send(ctx, "d2", "d1")
	require.NoError(t, err)

	changed, err := h.svc.Friends.Accept(ctx, "d2", "d1")
	require.NoError(t, err)
	assert.True(t, changed)
	assertSymmetric(t, h, names)

	d1, err := h.store.GetDecoy(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, d1.FriendRequests)
}

func TestDuplicateFriendRequestIsNoop(t *testing.T) {
	h := newHarness(t, testOptions())
	h.seedDecoys(t, "d1", "d2")
	ctx := context.Background()

	changed, err := h.svc.Friends.Send(ctx, "d1", "d2")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = h.svc.Friends.Send(ctx, "d1", "d2")
	require.NoError(t, err)
	assert.False(t, changed)

	d2, err := h.store.GetDecoy(ctx, "d2")
	require.NoError(t, err)
	assert.Len(t, d2.FriendRequests, 1)
	assert.Equal(t, []string{"Sent friend request to d2"}, h.logActions(t, "d1"))
}

func TestFriendValidation(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()

	_, err := h.svc.Friends.Send(ctx, "d1", "d1")
	var ve *models.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = h.svc.Friends.Accept(ctx, "", "d1")
	assert.ErrorAs(t, err, &ve)
}

func TestAcceptAfterWithdrawIsNoop(t *testing.T) {
	h := newHarness(t, testOptions())
	h.seedDecoys(t, "d1", "d2")
	ctx := context.Background()

	_, err := h.svc.Friends.Send(ctx, "d1", "d2")
	require.NoError(t, err)
	changed, err := h.svc.Friends.Withdraw(ctx, "d1", "d2")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = h.svc.Friends.Accept(ctx, "d2", "d1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, h.logActions(t, "d2"))
	assertSymmetric(t, h, []string{"d1", "d2"})
}

func TestSendFromDecoyWithoutPeers(t *testing.T) {
	h := newHarness(t, testOptions())
	h.seedDecoys(t, "lonely")

	target, changed, err := h.svc.Friends.SendFromDecoy(context.Background(), "lonely")
	require.NoError(t, err)
	assert.Empty(t, target)
	assert.False(t, changed)
	assert.Empty(t, h.jobIDs())
}

func TestSendFromDecoySchedulesPersistedAccept(t *testing.T) {
	h := newHarness(t, testOptions())
	h.seedDecoys(t, "d1", "d2")
	ctx := context.Background()

	target, changed, err := h.svc.Friends.SendFromDecoy(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "d2", target)

	assert.Equal(t, []string{"accept:d2:d1"}, h.jobIDs())
	jobs, err := h.store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, ActionAcceptFriendRequest, jobs[0].Action)
	assert.Equal(t, map[string]string{ArgUsername: "d2", ArgFriend: "d1"}, jobs[0].Args)

	// A second send is a no-op and schedules nothing new.
	_, changed, err = h.svc.Friends.SendFromDecoy(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, h.jobIDs(), 1)
}

// Scenario B: D1 befriends D2 and the delayed auto-accept completes it.
func TestScenarioAutoAcceptMakesMutualFriends(t *testing.T) {
	opts := testOptions()
	opts.AcceptDelay = 20 * time.Millisecond
	h := newHarness(t, opts)
	h.seedDecoys(t, "d1", "d2")
	h.start(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Behavior.handleSendFriendRequest(ctx, map[string]string{ArgUsername: "d1"}))

	require.Eventually(t, func() bool {
		d1, err := h.store.GetDecoy(ctx, "d1")
		return err == nil && d1.HasFriend("d2")
	}, 5*time.Second, 10*time.Millisecond)

	d1, err := h.store.GetDecoy(ctx, "d1")
	require.NoError(t, err)
	d2, err := h.store.GetDecoy(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, d1.Friends)
	assert.Equal(t, []string{"d1"}, d2.Friends)
	assert.Empty(t, d1.FriendRequests)
	assert.Empty(t, d2.FriendRequests)

	a1, err := h.store.GetAccount(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, a1.Friends)

	assert.Equal(t, []string{"Accepted friend request from d1"}, h.logActions(t, "d2"))
}

func TestAcceptJobSurvivesRestart(t *testing.T) {
	opts := testOptions()
	opts.AcceptDelay = time.Hour
	h := newHarness(t, opts)
	h.seedDecoys(t, "d1", "d2")
	ctx := context.Background()

	_, _, err := h.svc.Friends.SendFromDecoy(ctx, "d1")
	require.NoError(t, err)

	// A new process over the same store: the overdue accept runs on start.
	jobs, err := h.store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	jobs[0].FireAt = time.Now().Add(-time.Second)
	require.NoError(t, h.store.SaveJob(ctx, jobs[0]))

	restarted := newHarnessOn(t, h.store, opts)
	restarted.start(t)

	require.Eventually(t, func() bool {
		d2, err := h.store.GetDecoy(ctx, "d2")
		return err == nil && d2.HasFriend("d1")
	}, 5*time.Second, 10*time.Millisecond)
}
