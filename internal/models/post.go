package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Post counters that interaction jobs may increment.
const (
	CounterLikes    = "likes_count"
	CounterDislikes = "dislikes_count"
)

// Post is a feed post. Decoys author posts; real users may too.
type Post struct {
	ID            surrealmodels.RecordID `json:"id"`
	Title         string                 `json:"title"`
	Content       string                 `json:"content"`
	AuthorID      string                 `json:"author_id"`
	LikesCount    int                    `json:"likes_count"`
	DislikesCount int                    `json:"dislikes_count"`
	CommentsCount int                    `json:"comments_count"`
	Comments      []string               `json:"comments"`
	Hashtags      []string               `json:"hashtags"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// PostInput is the input structure for creating posts.
type PostInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	AuthorID string   `json:"author_id"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// Comment is a comment on a post.
type Comment struct {
	ID        surrealmodels.RecordID `json:"id"`
	PostID    string                 `json:"post_id"`
	AuthorID  string                 `json:"author_id"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
}

// CommentInput is the input structure for creating comments.
type CommentInput struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
}
