package service

import (
	"context"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// Store is the persistence contract. Every mutation of a shared document is
// conditional, so concurrent callers never need an external lock. Failures
// are reported as *models.StoreError wrapping the models sentinels.
type Store interface {
	// CreateDecoy inserts the decoy and its matching account atomically.
	// Returns models.ErrAlreadyExists when either username is taken.
	CreateDecoy(ctx context.Context, in models.DecoyInput) (*models.Decoy, error)
	GetDecoy(ctx context.Context, username string) (*models.Decoy, error)
	ListDecoys(ctx context.Context) ([]models.Decoy, error)
	// ListDecoyUsernames returns every decoy username except exclude.
	ListDecoyUsernames(ctx context.Context, exclude string) ([]string, error)

	CreateAccount(ctx context.Context, username, email string) (*models.Account, error)
	GetAccount(ctx context.Context, username string) (*models.Account, error)

	// AddFriendRequest adds sender to target's pending requests unless sender
	// is already a friend or already pending. Reports whether it changed.
	AddFriendRequest(ctx context.Context, sender, target string) (bool, error)
	// WithdrawFriendRequest removes sender from target's pending requests.
	WithdrawFriendRequest(ctx context.Context, sender, target string) (bool, error)
	// AcceptFriendRequest moves friend from user's pending requests into the
	// friend sets of both sides, only if the request is still pending.
	AcceptFriendRequest(ctx context.Context, user, friend string) (bool, error)
	// RejectFriendRequest removes friend from user's pending requests.
	RejectFriendRequest(ctx context.Context, user, friend string) (bool, error)

	CreatePost(ctx context.Context, in models.PostInput) (*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPostsExcludingAuthor(ctx context.Context, author string, limit int) ([]models.Post, error)
	ListPostsByAuthor(ctx context.Context, author string) ([]models.Post, error)
	IncrementPostCounter(ctx context.Context, postID, counter string) error
	// AddComment inserts the comment, bumps the post's comment count and
	// appends the comment id to the post.
	AddComment(ctx context.Context, in models.CommentInput) (*models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)

	AppendLog(ctx context.Context, entry models.LogEntry) error
	// ListLogs returns matching entries, newest first.
	ListLogs(ctx context.Context, filter models.LogFilter) ([]models.LogEntry, error)

	// RecordDetection creates the record for username with [reason], or
	// appends reason if absent. Reports whether anything changed.
	RecordDetection(ctx context.Context, username, reason string) (bool, error)
	// ListDetections returns all records, most recently detected first.
	ListDetections(ctx context.Context) ([]models.DetectionRecord, error)

	// GetOrCreateSession returns the session for the pair, creating an
	// ongoing one with the given opening line if none exists.
	GetOrCreateSession(ctx context.Context, initiator, counterpart, opening string) (*models.ConversationSession, bool, error)
	GetSession(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error)
	// AppendTurns extends an ongoing session's history. Returns
	// models.ErrConflict if the session is already completed.
	AppendTurns(ctx context.Context, initiator, counterpart string, turns ...models.Turn) (*models.ConversationSession, error)
	// CompleteSession sets the result iff the session is still ongoing.
	CompleteSession(ctx context.Context, initiator, counterpart, result string) (bool, error)
	// ReopenSession restarts a completed session with a fresh opening line
	// and empty history, keeping its verdict in PriorResults. An ongoing
	// session is returned unchanged with false.
	ReopenSession(ctx context.Context, initiator, counterpart, opening string) (*models.ConversationSession, bool, error)

	Statistics(ctx context.Context) (*models.Statistics, error)

	SaveJob(ctx context.Context, job models.PendingJob) error
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context) ([]models.PendingJob, error)
}

// Oracle is the text generation collaborator. Both calls may fail or return
// unusable text; callers validate and fall back to canned content.
type Oracle interface {
	Generate(ctx context.Context, prompt string, history []models.Turn) (string, error)
	Classify(ctx context.Context, transcript string) (string, error)
}
