// Package memstore is an in-process implementation of the honeytrap store.
// It backs tests and single-node deployments that do not need SurrealDB.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// Table names, shared with the SurrealDB schema for record ids.
const (
	tableDecoy     = "honeytrap"
	tableAccount   = "account"
	tablePost      = "post"
	tableComment   = "comment"
	tableDetection = "detection"
	tableSession   = "conversation"
)

// MemStore keeps every table in maps behind a single lock, which makes each
// method one atomic step.
type MemStore struct {
	mu sync.RWMutex

	decoys     map[string]*models.Decoy
	accounts   map[string]*models.Account
	posts      map[string]*models.Post
	postOrder  []string
	comments   map[string]*models.Comment
	logs       []models.LogEntry
	detections map[string]*models.DetectionRecord
	sessions   map[string]*models.ConversationSession
	jobs       map[string]models.PendingJob

	now func() time.Time
}

// New returns an empty store.
func New() *MemStore {
	return &MemStore{
		decoys:     make(map[string]*models.Decoy),
		accounts:   make(map[string]*models.Account),
		posts:      make(map[string]*models.Post),
		comments:   make(map[string]*models.Comment),
		detections: make(map[string]*models.DetectionRecord),
		sessions:   make(map[string]*models.ConversationSession),
		jobs:       make(map[string]models.PendingJob),
		now:        time.Now,
	}
}

func storeErr(op string, err error) error {
	return &models.StoreError{Op: op, Err: err}
}

// --- decoys and accounts ---

func (m *MemStore) CreateDecoy(_ context.Context, in models.DecoyInput) (*models.Decoy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.decoys[in.Username]; ok {
		return nil, storeErr("create decoy", fmt.Errorf("%w: %s", models.ErrAlreadyExists, in.Username))
	}
	if _, ok := m.accounts[in.Username]; ok {
		return nil, storeErr("create decoy", fmt.Errorf("%w: account %s", models.ErrAlreadyExists, in.Username))
	}

	now := m.now()
	d := &models.Decoy{
		ID:             models.NewRecordID(tableDecoy, in.Username),
		Username:       in.Username,
		Email:          in.Email,
		Purpose:        in.Purpose,
		Friends:        []string{},
		FriendRequests: []string{},
		CreatedAt:      now,
	}
	m.decoys[in.Username] = d
	m.accounts[in.Username] = &models.Account{
		ID:             models.NewRecordID(tableAccount, in.Username),
		Username:       in.Username,
		Email:          in.Email,
		IsDecoy:        true,
		Friends:        []string{},
		FriendRequests: []string{},
		CreatedAt:      now,
	}
	return cloneDecoy(d), nil
}

func (m *MemStore) GetDecoy(_ context.Context, username string) (*models.Decoy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decoys[username]
	if !ok {
		return nil, storeErr("get decoy", fmt.Errorf("%w: %s", models.ErrNotFound, username))
	}
	return cloneDecoy(d), nil
}

func (m *MemStore) ListDecoys(_ context.Context) ([]models.Decoy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Decoy, 0, len(m.decoys))
	for _, d := range m.decoys {
		out = append(out, *cloneDecoy(d))
	}
	slices.SortFunc(out, func(a, b models.Decoy) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}

func (m *MemStore) ListDecoyUsernames(_ context.Context, exclude string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.decoys))
	for name := range m.decoys {
		if name != exclude {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *MemStore) CreateAccount(_ context.Context, username, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; ok {
		return nil, storeErr("create account", fmt.Errorf("%w: %s", models.ErrAlreadyExists, username))
	}
	a := &models.Account{
		ID:             models.NewRecordID(tableAccount, username),
		Username:       username,
		Email:          email,
		Friends:        []string{},
		FriendRequests: []string{},
		CreatedAt:      m.now(),
	}
	m.accounts[username] = a
	return cloneAccount(a), nil
}

func (m *MemStore) GetAccount(_ context.Context, username string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[username]
	if !ok {
		return nil, storeErr("get account", fmt.Errorf("%w: %s", models.ErrNotFound, username))
	}
	return cloneAccount(a), nil
}

// --- friend requests ---

// sides returns the friend and request sets of username in both tables.
// Only the account is required; a decoy view exists only for decoys.
// Caller must hold the write lock.
func (m *MemStore) sides(username string) (friends, requests []*[]string, ok bool) {
	a, ok := m.accounts[username]
	if !ok {
		return nil, nil, false
	}
	friends = append(friends, &a.Friends)
	requests = append(requests, &a.FriendRequests)
	if d, ok := m.decoys[username]; ok {
		friends = append(friends, &d.Friends)
		requests = append(requests, &d.FriendRequests)
	}
	return friends, requests, true
}

func (m *MemStore) AddFriendRequest(_ context.Context, sender, target string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[sender]; !ok {
		return false, storeErr("add friend request", fmt.Errorf("%w: %s", models.ErrNotFound, sender))
	}
	a, ok := m.accounts[target]
	if !ok {
		return false, storeErr("add friend request", fmt.Errorf("%w: %s", models.ErrNotFound, target))
	}
	if a.HasFriend(sender) || a.HasFriendRequest(sender) {
		return false, nil
	}
	_, requests, _ := m.sides(target)
	for _, r := range requests {
		*r = addToSet(*r, sender)
	}
	return true, nil
}

func (m *MemStore) WithdrawFriendRequest(_ context.Context, sender, target string) (bool, error) {
	return m.pullRequest("withdraw friend request", target, sender)
}

func (m *MemStore) RejectFriendRequest(_ context.Context, user, friend string) (bool, error) {
	return m.pullRequest("reject friend request", user, friend)
}

func (m *MemStore) pullRequest(op, owner, requester string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[owner]
	if !ok {
		return false, storeErr(op, fmt.Errorf("%w: %s", models.ErrNotFound, owner))
	}
	if !a.HasFriendRequest(requester) {
		return false, nil
	}
	_, requests, _ := m.sides(owner)
	for _, r := range requests {
		*r = pull(*r, requester)
	}
	return true, nil
}

func (m *MemStore) AcceptFriendRequest(_ context.Context, user, friend string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[user]
	if !ok {
		return false, storeErr("accept friend request", fmt.Errorf("%w: %s", models.ErrNotFound, user))
	}
	if !a.HasFriendRequest(friend) {
		return false, nil
	}
	friendSets, friendRequests, ok := m.sides(friend)
	if !ok {
		return false, storeErr("accept friend request", fmt.Errorf("%w: %s", models.ErrNotFound, friend))
	}

	userFriends, userRequests, _ := m.sides(user)
	for _, r := range userRequests {
		*r = pull(*r, friend)
	}
	for _, f := range userFriends {
		*f = addToSet(*f, friend)
	}
	// A crossed request from user to friend is settled by the same accept.
	for _, r := range friendRequests {
		*r = pull(*r, user)
	}
	for _, f := range friendSets {
		*f = addToSet(*f, user)
	}
	return true, nil
}

// --- posts and comments ---

func (m *MemStore) CreatePost(_ context.Context, in models.PostInput) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	now := m.now()
	p := &models.Post{
		ID:        models.NewRecordID(tablePost, id),
		Title:     in.Title,
		Content:   in.Content,
		AuthorID:  in.AuthorID,
		Comments:  []string{},
		Hashtags:  slices.Clone(in.Hashtags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.Hashtags == nil {
		p.Hashtags = []string{}
	}
	m.posts[id] = p
	m.postOrder = append(m.postOrder, id)
	return clonePost(p), nil
}

func (m *MemStore) GetPost(_ context.Context, id string) (*models.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, storeErr("get post", fmt.Errorf("%w: %s", models.ErrNotFound, id))
	}
	return clonePost(p), nil
}

func (m *MemStore) ListPostsExcludingAuthor(_ context.Context, author string, limit int) ([]models.Post, error) {
	return m.filterPosts(func(p *models.Post) bool { return p.AuthorID != author }, limit), nil
}

func (m *MemStore) ListPostsByAuthor(_ context.Context, author string) ([]models.Post, error) {
	return m.filterPosts(func(p *models.Post) bool { return p.AuthorID == author }, 0), nil
}

func (m *MemStore) filterPosts(keep func(*models.Post) bool, limit int) []models.Post {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Post{}
	for _, id := range m.postOrder {
		p := m.posts[id]
		if !keep(p) {
			continue
		}
		out = append(out, *clonePost(p))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (m *MemStore) IncrementPostCounter(_ context.Context, postID, counter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[postID]
	if !ok {
		return storeErr("increment post counter", fmt.Errorf("%w: %s", models.ErrNotFound, postID))
	}
	switch counter {
	case models.CounterLikes:
		p.LikesCount++
	case models.CounterDislikes:
		p.DislikesCount++
	default:
		return &models.ValidationError{Field: "counter", Reason: fmt.Sprintf("unknown counter %q", counter)}
	}
	p.UpdatedAt = m.now()
	return nil
}

func (m *MemStore) AddComment(_ context.Context, in models.CommentInput) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[in.PostID]
	if !ok {
		return nil, storeErr("add comment", fmt.Errorf("%w: post %s", models.ErrNotFound, in.PostID))
	}
	id := uuid.New().String()
	c := &models.Comment{
		ID:        models.NewRecordID(tableComment, id),
		PostID:    in.PostID,
		AuthorID:  in.AuthorID,
		Content:   in.Content,
		CreatedAt: m.now(),
	}
	m.comments[id] = c
	p.CommentsCount++
	p.Comments = append(p.Comments, id)
	p.UpdatedAt = c.CreatedAt
	cc := *c
	return &cc, nil
}

func (m *MemStore) GetComment(_ context.Context, id string) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, storeErr("get comment", fmt.Errorf("%w: %s", models.ErrNotFound, id))
	}
	cc := *c
	return &cc, nil
}

// --- interaction log ---

func (m *MemStore) AppendLog(_ context.Context, entry models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *MemStore) ListLogs(_ context.Context, f models.LogFilter) ([]models.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(f.ActionContains)
	out := []models.LogEntry{}
	for i := len(m.logs) - 1; i >= 0; i-- {
		e := m.logs[i]
		if f.Username != "" && e.Username != f.Username {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Action), needle) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// --- detections ---

func (m *MemStore) RecordDetection(_ context.Context, username, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	r, ok := m.detections[username]
	if !ok {
		m.detections[username] = &models.DetectionRecord{
			ID:              models.NewRecordID(tableDetection, username),
			Username:        username,
			Reasons:         []string{reason},
			FirstDetectedAt: now,
			LastDetectedAt:  now,
		}
		return true, nil
	}
	if r.HasReason(reason) {
		return false, nil
	}
	r.Reasons = append(r.Reasons, reason)
	r.LastDetectedAt = now
	return true, nil
}

func (m *MemStore) ListDetections(_ context.Context) ([]models.DetectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DetectionRecord, 0, len(m.detections))
	for _, r := range m.detections {
		rc := *r
		rc.Reasons = slices.Clone(r.Reasons)
		out = append(out, rc)
	}
	slices.SortFunc(out, func(a, b models.DetectionRecord) int {
		if c := b.LastDetectedAt.Compare(a.LastDetectedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}

// --- conversation sessions ---

func (m *MemStore) GetOrCreateSession(_ context.Context, initiator, counterpart, opening string) (*models.ConversationSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.SessionKey(initiator, counterpart)
	if s, ok := m.sessions[key]; ok {
		return cloneSession(s), false, nil
	}
	s := &models.ConversationSession{
		ID:          models.NewRecordID(tableSession, key),
		Initiator:   initiator,
		Counterpart: counterpart,
		Opening:     opening,
		History:     []models.Turn{},
		Status:      models.SessionOngoing,
		CreatedAt:   m.now(),
	}
	m.sessions[key] = s
	return cloneSession(s), true, nil
}

func (m *MemStore) GetSession(_ context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[models.SessionKey(initiator, counterpart)]
	if !ok {
		return nil, storeErr("get session", fmt.Errorf("%w: %s/%s", models.ErrNotFound, initiator, counterpart))
	}
	return cloneSession(s), nil
}

func (m *MemStore) AppendTurns(_ context.Context, initiator, counterpart string, turns ...models.Turn) (*models.ConversationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[models.SessionKey(initiator, counterpart)]
	if !ok {
		return nil, storeErr("append turns", fmt.Errorf("%w: %s/%s", models.ErrNotFound, initiator, counterpart))
	}
	if s.Done() {
		return nil, storeErr("append turns", fmt.Errorf("%w: session completed", models.ErrConflict))
	}
	s.History = append(s.History, turns...)
	return cloneSession(s), nil
}

func (m *MemStore) CompleteSession(_ context.Context, initiator, counterpart, result string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[models.SessionKey(initiator, counterpart)]
	if !ok {
		return false, storeErr("complete session", fmt.Errorf("%w: %s/%s", models.ErrNotFound, initiator, counterpart))
	}
	if s.Done() {
		return false, nil
	}
	now := m.now()
	s.Status = models.SessionCompleted
	s.Result = &result
	s.CompletedAt = &now
	return true, nil
}

func (m *MemStore) ReopenSession(_ context.Context, initiator, counterpart, opening string) (*models.ConversationSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[models.SessionKey(initiator, counterpart)]
	if !ok {
		return nil, false, storeErr("reopen session", fmt.Errorf("%w: %s/%s", models.ErrNotFound, initiator, counterpart))
	}
	if !s.Done() {
		return cloneSession(s), false, nil
	}
	if s.Result != nil {
		s.PriorResults = append(s.PriorResults, *s.Result)
	}
	s.Opening = opening
	s.History = []models.Turn{}
	s.Status = models.SessionOngoing
	s.Result = nil
	s.CompletedAt = nil
	s.CreatedAt = m.now()
	return cloneSession(s), true, nil
}

// --- statistics and jobs ---

func (m *MemStore) Statistics(_ context.Context) (*models.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &models.Statistics{
		Decoys:      len(m.decoys),
		Accounts:    len(m.accounts),
		Posts:       len(m.posts),
		Comments:    len(m.comments),
		LogEntries:  len(m.logs),
		Detections:  len(m.detections),
		PendingJobs: len(m.jobs),
	}
	for _, s := range m.sessions {
		if s.Done() {
			st.SessionsCompleted++
		} else {
			st.SessionsOngoing++
		}
	}
	return st, nil
}

func (m *MemStore) SaveJob(_ context.Context, job models.PendingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
	return nil
}

func (m *MemStore) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *MemStore) ListJobs(_ context.Context) ([]models.PendingJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PendingJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b models.PendingJob) int { return a.FireAt.Compare(b.FireAt) })
	return out, nil
}

// --- helpers ---

func addToSet(set []string, v string) []string {
	if slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

func pull(set []string, v string) []string {
	return slices.DeleteFunc(set, func(s string) bool { return s == v })
}

func cloneDecoy(d *models.Decoy) *models.Decoy {
	c := *d
	c.Friends = slices.Clone(d.Friends)
	c.FriendRequests = slices.Clone(d.FriendRequests)
	return &c
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.Friends = slices.Clone(a.Friends)
	c.FriendRequests = slices.Clone(a.FriendRequests)
	return &c
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Comments = slices.Clone(p.Comments)
	c.Hashtags = slices.Clone(p.Hashtags)
	return &c
}

func cloneSession(s *models.ConversationSession) *models.ConversationSession {
	c := *s
	c.History = slices.Clone(s.History)
	c.PriorResults = slices.Clone(s.PriorResults)
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}
