package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/honeytrap/internal/api"
	"github.com/raphaelgruber/honeytrap/internal/memstore"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
	"github.com/raphaelgruber/honeytrap/internal/service"
)

type echoOracle struct{}

func (echoOracle) Generate(_ context.Context, _ string, history []models.Turn) (string, error) {
	if len(history) == 0 {
		return "Hi there, nice to meet you!", nil
	}
	return "Tell me more about that.", nil
}

func (echoOracle) Classify(context.Context, string) (string, error) {
	return "bot", nil
}

func newServer(t *testing.T) (*Client, *memstore.MemStore) {
	t.Helper()
	store := memstore.New()
	mc := metrics.NewCollector()
	svc := service.New(service.Deps{
		Store:     store,
		Oracle:    echoOracle{},
		Scheduler: scheduler.New(scheduler.Options{Metrics: mc}),
		Metrics:   mc,
		Options: service.Options{
			FriendInterval:   time.Hour,
			InteractInterval: time.Hour,
			PostDelayMin:     time.Hour,
			PostDelayMax:     time.Hour,
			Sleep:            func(context.Context, time.Duration) error { return nil },
		},
	})
	srv := httptest.NewServer(api.NewHandler(svc, mc).Routes())
	t.Cleanup(func() {
		srv.Close()
		svc.Decoys.Wait()
	})
	return New(srv.URL), store
}

func TestDoMapsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"decoy not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetDecoy(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "decoy not found", apiErr.Message)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("HONEYTRAP_SERVER_URL", "")
	t.Setenv("HONEYTRAP_CLIENT_TIMEOUT", "5s")

	c := New("")
	assert.Equal(t, "http://localhost:8484", c.baseURL)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	c = New("http://example.com/")
	assert.Equal(t, "http://example.com", c.baseURL)
}

func TestDecoyAndFriendRoundTrip(t *testing.T) {
	c, store := newServer(t)
	ctx := context.Background()

	d, err := c.CreateDecoy(ctx, "gift card scams")
	require.NoError(t, err)
	require.NotEmpty(t, d.Username)

	_, err = store.CreateDecoy(ctx, models.DecoyInput{Username: "other", Purpose: "p"})
	require.NoError(t, err)

	changed, err := c.Friend(ctx, FriendSend, d.Username, "other")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = c.Friend(ctx, FriendAccept, "other", d.Username)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := c.GetDecoy(ctx, d.Username)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, got.Friends)

	_, err = c.Friend(ctx, FriendOp("poke"), d.Username, "other")
	assert.Error(t, err)
}

func TestAccountsAndFriendList(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	d, err := c.CreateDecoy(ctx, "crypto giveaway")
	require.NoError(t, err)

	a, err := c.CreateAccount(ctx, "grace", "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, "grace", a.Username)

	_, err = c.CreateAccount(ctx, "grace", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	changed, err := c.Friend(ctx, FriendSend, "grace", d.Username)
	require.NoError(t, err)
	assert.True(t, changed)

	fl, err := c.ListFriends(ctx, d.Username)
	require.NoError(t, err)
	assert.Equal(t, []string{"grace"}, fl.FriendRequests)

	p, err := c.GetAccount(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", p.Email)
	assert.Empty(t, p.Posts)

	_, err = c.ListFriends(ctx, "nobody")
	assert.True(t, IsNotFound(err))
}

func TestProbeChat(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	lines := []string{"hello", "who are you", "lol", "ok", "bye"}
	next := func() (string, bool) {
		if len(lines) == 0 {
			return "", false
		}
		l := lines[0]
		lines = lines[1:]
		return l, true
	}
	var frames []ProbeFrame
	onFrame := func(f ProbeFrame) error {
		frames = append(frames, f)
		return nil
	}

	result, err := c.ProbeChat(ctx, "d1", "bob", next, onFrame)
	require.NoError(t, err)
	assert.Equal(t, "bot", result)

	require.NotEmpty(t, frames)
	assert.Equal(t, FrameSession, frames[0].Type)
	assert.Equal(t, "Hi there, nice to meet you!", frames[0].Message)
	assert.Equal(t, FrameResult, frames[len(frames)-1].Type)

	finished, err := c.ProbeResult(ctx, "d1", "bob")
	require.NoError(t, err)
	assert.Len(t, finished.History, 10)
	assert.True(t, strings.HasPrefix(finished.Opening, "Hi there"))

	// Connecting again after the verdict starts a new conversation.
	lines = []string{"me again"}
	frames = nil
	result, err = c.ProbeChat(ctx, "d1", "bob", next, onFrame)
	require.NoError(t, err)
	assert.Empty(t, result)
	require.NotEmpty(t, frames)
	assert.Equal(t, FrameSession, frames[0].Type)
	assert.Equal(t, models.SessionOngoing, frames[0].Session.Status)

	s, err := c.ProbeResult(ctx, "d1", "bob")
	require.NoError(t, err)
	assert.Len(t, s.History, 2)
	assert.Nil(t, s.Result)
	assert.Equal(t, []string{"bot"}, s.PriorResults)
}
