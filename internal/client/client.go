// Package client provides an HTTP client for the honeytrap server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// Client is an HTTP client for the honeytrap server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses HONEYTRAP_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via HONEYTRAP_CLIENT_TIMEOUT env var (default 2m, probe replies wait on the LLM).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("HONEYTRAP_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("HONEYTRAP_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s - %s", e.Status, http.StatusText(e.Status), e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Do sends a request and decodes the JSON response into result. A nil body
// sends no payload; a nil result discards the response body.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TYPES (matching the server's JSON)
// =============================================================================

// Stats is the aggregate view returned by /honeytrap/stats.
type Stats struct {
	models.Statistics
	Scheduler SchedulerStats `json:"scheduler"`
	Runtime   *RuntimeStats  `json:"runtime,omitempty"`
}

// SchedulerStats summarizes the job scheduler.
type SchedulerStats struct {
	Jobs      int   `json:"jobs"`
	Running   int   `json:"running"`
	Persisted int   `json:"persisted"`
	Runs      int64 `json:"runs"`
	Misfires  int64 `json:"misfires"`
	Failures  int64 `json:"failures"`
}

// RuntimeStats holds in-memory counters (reset on server restart).
type RuntimeStats struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	Jobs          map[string]int64 `json:"jobs"`
	Detections    map[string]int64 `json:"detections"`
	ProbeResults  map[string]int64 `json:"probe_results"`
}

// Job is a scheduled job as reported by /jobs.
type Job struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Action    string            `json:"action"`
	Args      map[string]string `json:"args,omitempty"`
	NextRun   time.Time         `json:"next_run"`
	Every     time.Duration     `json:"every,omitempty"`
	Persisted bool              `json:"persisted"`
	Running   bool              `json:"running"`
	Runs      int64             `json:"runs"`
	Misfires  int64             `json:"misfires"`
	Failures  int64             `json:"failures"`
	LastError string            `json:"last_error,omitempty"`
}

// Signal is one analyzer finding from a sweep.
type Signal struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
	Analyzer string `json:"analyzer"`
}

// SweepResult summarizes a manual detection sweep.
type SweepResult struct {
	Entries  int      `json:"entries"`
	Signals  []Signal `json:"signals"`
	Recorded int      `json:"recorded"`
}

// CommentVerdict is the outcome of screening a comment.
type CommentVerdict struct {
	CommentID  string `json:"comment_id"`
	Author     string `json:"author"`
	Honeytrap  bool   `json:"honeytrap"`
	Suspicious bool   `json:"suspicious"`
	Message    string `json:"message"`
}

// AccountProfile is an account with the posts it authored.
type AccountProfile struct {
	models.Account
	Posts []models.Post `json:"posts"`
}

// FriendList is the friend state of one account.
type FriendList struct {
	Username       string   `json:"username"`
	Friends        []string `json:"friends"`
	FriendRequests []string `json:"friend_requests"`
}

// FeedResult is the decoy's answer to one probe message.
type FeedResult struct {
	Reply   string                      `json:"reply,omitempty"`
	Delay   time.Duration               `json:"delay"`
	Session *models.ConversationSession `json:"session"`
}

// =============================================================================
// DECOY OPERATIONS
// =============================================================================

// CreateDecoy creates a decoy for the given purpose.
func (c *Client) CreateDecoy(ctx context.Context, purpose string) (*models.Decoy, error) {
	var result struct {
		ID        string       `json:"id"`
		Honeytrap models.Decoy `json:"honeytrap"`
	}
	if err := c.Do(ctx, http.MethodPost, "/honeytrap/create", map[string]string{"purpose": purpose}, &result); err != nil {
		return nil, err
	}
	return &result.Honeytrap, nil
}

// GetDecoy fetches a decoy by username.
func (c *Client) GetDecoy(ctx context.Context, username string) (*models.Decoy, error) {
	var d models.Decoy
	if err := c.Do(ctx, http.MethodGet, "/honeytrap/"+url.PathEscape(username), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDecoys lists every decoy.
func (c *Client) ListDecoys(ctx context.Context) ([]models.Decoy, error) {
	var ds []models.Decoy
	if err := c.Do(ctx, http.MethodGet, "/honeytrap/list", nil, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// =============================================================================
// DETECTION OPERATIONS
// =============================================================================

// ListDetected lists every detection record.
func (c *Client) ListDetected(ctx context.Context) ([]models.DetectionRecord, error) {
	var rs []models.DetectionRecord
	if err := c.Do(ctx, http.MethodGet, "/honeytrap/detected", nil, &rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// ListDetectedUsernames lists only the flagged usernames.
func (c *Client) ListDetectedUsernames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.Do(ctx, http.MethodGet, "/honeytrap/detected?fields=username", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// LogAction appends an activity log entry.
func (c *Client) LogAction(ctx context.Context, username, action string) error {
	return c.Do(ctx, http.MethodPost, "/honeytrap/log", map[string]string{"username": username, "action": action}, nil)
}

// Analyze runs a detection sweep immediately.
func (c *Client) Analyze(ctx context.Context) (*SweepResult, error) {
	var res SweepResult
	if err := c.Do(ctx, http.MethodPost, "/honeytrap/analyze", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckComment screens a comment on a decoy's post.
func (c *Client) CheckComment(ctx context.Context, commentID string) (*CommentVerdict, error) {
	var v CommentVerdict
	if err := c.Do(ctx, http.MethodPost, "/honeytrap/comments/"+url.PathEscape(commentID)+"/check", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Stats fetches store, scheduler, and runtime statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.Do(ctx, http.MethodGet, "/honeytrap/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListJobs lists scheduled jobs.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.Do(ctx, http.MethodGet, "/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// =============================================================================
// ACCOUNT OPERATIONS
// =============================================================================

// CreateAccount registers a regular account. email may be empty.
func (c *Client) CreateAccount(ctx context.Context, username, email string) (*models.Account, error) {
	var a models.Account
	body := map[string]string{"username": username, "email": email}
	if err := c.Do(ctx, http.MethodPost, "/accounts", body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount fetches an account and its posts.
func (c *Client) GetAccount(ctx context.Context, username string) (*AccountProfile, error) {
	var p AccountProfile
	if err := c.Do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(username), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// FRIEND OPERATIONS
// =============================================================================

// ListFriends fetches the friends and pending requests of username.
func (c *Client) ListFriends(ctx context.Context, username string) (*FriendList, error) {
	var fl FriendList
	if err := c.Do(ctx, http.MethodGet, "/friends/"+url.PathEscape(username), nil, &fl); err != nil {
		return nil, err
	}
	return &fl, nil
}

// FriendOp is a friend-request transition.
type FriendOp string

const (
	FriendSend     FriendOp = "send"
	FriendWithdraw FriendOp = "withdraw"
	FriendAccept   FriendOp = "accept"
	FriendReject   FriendOp = "reject"
)

// Friend applies op between username and other and reports whether any
// state changed.
func (c *Client) Friend(ctx context.Context, op FriendOp, username, other string) (bool, error) {
	base := "/friends/" + url.PathEscape(username)
	other = url.PathEscape(other)

	var method, path string
	switch op {
	case FriendSend:
		method, path = http.MethodPost, base+"/requests/"+other
	case FriendWithdraw:
		method, path = http.MethodDelete, base+"/requests/"+other
	case FriendAccept:
		method, path = http.MethodPost, base+"/accept/"+other
	case FriendReject:
		method, path = http.MethodPost, base+"/reject/"+other
	default:
		return false, fmt.Errorf("unknown friend operation %q", op)
	}

	var res struct {
		Changed bool `json:"changed"`
	}
	if err := c.Do(ctx, method, path, nil, &res); err != nil {
		return false, err
	}
	return res.Changed, nil
}

// =============================================================================
// PROBE OPERATIONS
// =============================================================================

func probePath(initiator, counterpart string) string {
	return "/probe/" + url.PathEscape(initiator) + "/" + url.PathEscape(counterpart) + "/"
}

// StartProbe returns the active probe session for a pair, opening a new one
// if none is running.
func (c *Client) StartProbe(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	var s models.ConversationSession
	if err := c.Do(ctx, http.MethodPost, probePath(initiator, counterpart), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SendProbeMessage feeds one counterpart message and returns the decoy's reply.
func (c *Client) SendProbeMessage(ctx context.Context, initiator, counterpart, message string) (*FeedResult, error) {
	var res FeedResult
	path := probePath(initiator, counterpart) + "messages"
	if err := c.Do(ctx, http.MethodPost, path, map[string]string{"message": message}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ProbeResult fetches the session for a pair.
func (c *Client) ProbeResult(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	var s models.ConversationSession
	if err := c.Do(ctx, http.MethodGet, probePath(initiator, counterpart), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ProbeFrame is one server frame on the probe socket.
type ProbeFrame struct {
	Type    string                      `json:"type"`
	Message string                      `json:"message,omitempty"`
	Result  string                      `json:"result,omitempty"`
	Error   string                      `json:"error,omitempty"`
	Session *models.ConversationSession `json:"session,omitempty"`
}

// Probe frame types.
const (
	FrameSession = "session"
	FrameReply   = "reply"
	FrameResult  = "result"
	FrameError   = "error"
)

// ProbeChat runs a live probe over the WebSocket endpoint. next supplies
// counterpart messages (ok=false ends the chat); onFrame receives every server
// frame. Returns the classification once the server sends a result.
func (c *Client) ProbeChat(
	ctx context.Context,
	initiator, counterpart string,
	next func() (string, bool),
	onFrame func(ProbeFrame) error,
) (string, error) {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL + "/ws/probe/" + url.PathEscape(initiator) + "/" + url.PathEscape(counterpart))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	read := func() (ProbeFrame, error) {
		var f ProbeFrame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return f, ctx.Err()
			}
			return f, fmt.Errorf("read message: %w", err)
		}
		return f, onFrame(f)
	}

	frame, err := read()
	if err != nil {
		return "", err
	}
	switch frame.Type {
	case FrameResult:
		return frame.Result, nil
	case FrameError:
		return "", fmt.Errorf("probe error: %s", frame.Error)
	}
	// A finished session sends its result straight after the session frame.
	if frame.Session != nil && frame.Session.Status == models.SessionCompleted {
		frame, err = read()
		if err != nil {
			return "", err
		}
		return frame.Result, nil
	}

	for {
		msg, ok := next()
		if !ok {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return "", nil
		}
		if err := conn.WriteJSON(ProbeFrame{Message: msg}); err != nil {
			return "", fmt.Errorf("send message: %w", err)
		}

		// A reply may be followed directly by the result.
		for {
			frame, err := read()
			if err != nil {
				return "", err
			}
			if frame.Type == FrameResult {
				return frame.Result, nil
			}
			if frame.Type == FrameReply && frame.Session != nil && frame.Session.Status == models.SessionCompleted {
				continue
			}
			break
		}
	}
}
