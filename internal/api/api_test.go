package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/honeytrap/internal/memstore"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
	"github.com/raphaelgruber/honeytrap/internal/service"
)

// scriptedOracle replies with a fixed line and classifies transcripts
// mentioning "crypto" as fraud.
type scriptedOracle struct{}

func (scriptedOracle) Generate(_ context.Context, prompt string, history []models.Turn) (string, error) {
	if len(history) > 0 {
		return "Sounds fun!", nil
	}
	return "", context.DeadlineExceeded
}

func (scriptedOracle) Classify(_ context.Context, transcript string) (string, error) {
	if strings.Contains(transcript, "crypto") {
		return "fraud", nil
	}
	return "genuine", nil
}

type testServer struct {
	*httptest.Server
	store *memstore.MemStore
	svc   *service.Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	mc := metrics.NewCollector()
	sched := scheduler.New(scheduler.Options{Store: store, Metrics: mc})
	svc := service.New(service.Deps{
		Store:     store,
		Oracle:    scriptedOracle{},
		Scheduler: sched,
		Metrics:   mc,
		Options: service.Options{
			PostJobs:         2,
			PostDelayMin:     time.Hour,
			PostDelayMax:     time.Hour,
			FriendInterval:   time.Hour,
			InteractInterval: time.Hour,
			AcceptDelay:      time.Hour,
			TypingCPS:        40,
			Sleep:            func(context.Context, time.Duration) error { return nil },
		},
	})
	srv := httptest.NewServer(NewHandler(svc, mc).Routes())
	t.Cleanup(func() {
		srv.Close()
		svc.Decoys.Wait()
	})
	return &testServer{Server: srv, store: store, svc: svc}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestCreateAndListDecoys(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/honeytrap/create", map[string]string{"purpose": "romance scam"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created struct {
		ID        string       `json:"id"`
		Honeytrap models.Decoy `json:"honeytrap"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "romance_scam_user", created.ID)
	assert.Equal(t, "romance scam", created.Honeytrap.Purpose)

	status, body = s.do(t, http.MethodGet, "/honeytrap/list", nil)
	require.Equal(t, http.StatusOK, status)
	var decoys []models.Decoy
	require.NoError(t, json.Unmarshal(body, &decoys))
	require.Len(t, decoys, 1)

	status, _ = s.do(t, http.MethodGet, "/honeytrap/romance_scam_user", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/honeytrap/nobody", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateDecoyRejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/honeytrap/create", map[string]string{"purpose": "  "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "purpose")

	req, err := http.NewRequest(http.MethodPost, s.URL+"/honeytrap/create", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogAnalyzeAndDetected(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, http.MethodPost, "/honeytrap/log", map[string]string{"username": "spammer", "action": "Commented on post A: CLICK HERE"})
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/honeytrap/analyze", nil)
	require.Equal(t, http.StatusOK, status)
	var sweep service.SweepResult
	require.NoError(t, json.Unmarshal(body, &sweep))
	assert.Equal(t, 1, sweep.Recorded)

	status, body = s.do(t, http.MethodGet, "/honeytrap/detected?fields=username", nil)
	require.Equal(t, http.StatusOK, status)
	var names []string
	require.NoError(t, json.Unmarshal(body, &names))
	assert.Equal(t, []string{"spammer"}, names)

	status, body = s.do(t, http.MethodGet, "/honeytrap/detected", nil)
	require.Equal(t, http.StatusOK, status)
	var records []models.DetectionRecord
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	assert.Equal(t, []string{"spammy content"}, records[0].Reasons)

	status, body = s.do(t, http.MethodGet, "/honeytrap/stats", nil)
	require.Equal(t, http.StatusOK, status)
	var stats service.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Detections)
	assert.Equal(t, 1, stats.LogEntries)
}

func TestFriendEndpoints(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for _, n := range []string{"d1", "d2"} {
		_, err := s.store.CreateDecoy(ctx, models.DecoyInput{Username: n, Purpose: "p"})
		require.NoError(t, err)
	}

	changed := func(method, path string) bool {
		status, body := s.do(t, method, path, nil)
		require.Equal(t, http.StatusOK, status, string(body))
		var res struct{ Changed bool }
		require.NoError(t, json.Unmarshal(body, &res))
		return res.Changed
	}

	assert.True(t, changed(http.MethodPost, "/friends/d1/requests/d2"))
	assert.False(t, changed(http.MethodPost, "/friends/d1/requests/d2"))
	assert.True(t, changed(http.MethodDelete, "/friends/d1/requests/d2"))
	assert.False(t, changed(http.MethodPost, "/friends/d2/accept/d1"))
	assert.True(t, changed(http.MethodPost, "/friends/d1/requests/d2"))
	assert.True(t, changed(http.MethodPost, "/friends/d2/accept/d1"))
	assert.False(t, changed(http.MethodPost, "/friends/d2/reject/d1"))

	d1, err := s.store.GetDecoy(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, d1.Friends)

	status, _ := s.do(t, http.MethodPost, "/friends/d1/requests/d1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodPost, "/friends/ghost/requests/d1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAccountsJoinTheFriendGraph(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	_, err := s.store.CreateDecoy(ctx, models.DecoyInput{Username: "d1", Purpose: "p"})
	require.NoError(t, err)

	status, body := s.do(t, http.MethodPost, "/accounts", map[string]string{"username": "alice", "email": "alice@example.com"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var account models.Account
	require.NoError(t, json.Unmarshal(body, &account))
	assert.Equal(t, "alice", account.Username)
	assert.False(t, account.IsDecoy)

	status, _ = s.do(t, http.MethodPost, "/accounts", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = s.do(t, http.MethodPost, "/accounts", map[string]string{"username": "d1"})
	assert.Equal(t, http.StatusConflict, status)
	status, _ = s.do(t, http.MethodPost, "/accounts", map[string]string{"username": " "})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodPost, "/accounts", map[string]string{"username": "bob", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/friends/alice/requests/d1", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var friends service.FriendList
	status, body = s.do(t, http.MethodGet, "/friends/d1", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &friends))
	assert.Equal(t, []string{"alice"}, friends.FriendRequests)
	assert.Empty(t, friends.Friends)

	status, _ = s.do(t, http.MethodPost, "/friends/d1/accept/alice", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/friends/alice", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &friends))
	assert.Equal(t, "alice", friends.Username)
	assert.Equal(t, []string{"d1"}, friends.Friends)
	assert.Empty(t, friends.FriendRequests)

	_, err = s.store.CreatePost(ctx, models.PostInput{Title: "Hello", Content: "first post", AuthorID: "alice"})
	require.NoError(t, err)
	status, body = s.do(t, http.MethodGet, "/accounts/alice", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var profile service.AccountProfile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "alice@example.com", profile.Email)
	require.Len(t, profile.Posts, 1)
	assert.Equal(t, "Hello", profile.Posts[0].Title)

	status, _ = s.do(t, http.MethodGet, "/friends/ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodGet, "/accounts/ghost", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProbeEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/probe/d1/eve/", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	for _, m := range []string{"hi", "ok", "nice", "cool", "invest in my crypto"} {
		status, body = s.do(t, http.MethodPost, "/probe/d1/eve/messages", map[string]string{"message": m})
		require.Equal(t, http.StatusOK, status, string(body))
	}

	status, body = s.do(t, http.MethodGet, "/probe/d1/eve/", nil)
	require.Equal(t, http.StatusOK, status)
	var session models.ConversationSession
	require.NoError(t, json.Unmarshal(body, &session))
	require.NotNil(t, session.Result)
	assert.Equal(t, "fraud", *session.Result)

	status, _ = s.do(t, http.MethodGet, "/probe/d1/nobody/", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodPost, "/probe/d1/eve/messages", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProbeSocket(t *testing.T) {
	s := newTestServer(t)

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/probe/d1/mallory"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var frame socketMessage
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, msgSession, frame.Type)
	assert.NotEmpty(t, frame.Message)

	for _, m := range []string{"hey", "sup", "", "cool", "nice", "buy crypto now"} {
		require.NoError(t, ws.WriteJSON(socketMessage{Message: m}))
		require.NoError(t, ws.ReadJSON(&frame))
		if m == "" {
			assert.Equal(t, msgError, frame.Type)
			continue
		}
		assert.Equal(t, msgReply, frame.Type)
		assert.Equal(t, "Sounds fun!", frame.Message)
	}

	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal(t, msgResult, frame.Type)
	assert.Equal(t, "fraud", frame.Result)

	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHealthJobsAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	_, _ = s.do(t, http.MethodPost, "/honeytrap/create", map[string]string{"purpose": "crypto"})
	s.svc.Decoys.Wait()

	status, body = s.do(t, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, status)
	var jobs []scheduler.JobInfo
	require.NoError(t, json.Unmarshal(body, &jobs))
	assert.Len(t, jobs, 4)

	status, _ = s.do(t, http.MethodPost, "/honeytrap/analyze", nil)
	require.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "honeytrap_operation_seconds")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &models.ValidationError{Field: "x", Reason: "y"}, http.StatusBadRequest},
		{"not found", &models.StoreError{Op: "get", Err: models.ErrNotFound}, http.StatusNotFound},
		{"exists", &models.StoreError{Op: "create", Err: models.ErrAlreadyExists}, http.StatusConflict},
		{"store down", &models.StoreError{Op: "list", Err: io.ErrUnexpectedEOF}, http.StatusServiceUnavailable},
		{"other", io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
