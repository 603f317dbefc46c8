package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

func (c *Client) CreatePost(ctx context.Context, in models.PostInput) (*models.Post, error) {
	hashtags := in.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	res, err := query[[]models.Post](ctx, c, `
		CREATE type::record("post", $id) CONTENT {
			title: $title,
			content: $content,
			author_id: $author_id,
			likes_count: 0,
			dislikes_count: 0,
			comments_count: 0,
			comments: [],
			hashtags: $hashtags,
			created_at: time::now(),
			updated_at: time::now()
		} RETURN AFTER
	`, map[string]any{
		"id":        uuid.New().String(),
		"title":     in.Title,
		"content":   in.Content,
		"author_id": in.AuthorID,
		"hashtags":  hashtags,
	})
	if err != nil {
		return nil, storeErr("create post", err)
	}
	p, ok := first(res)
	if !ok {
		return nil, storeErr("create post", errors.New("no result returned"))
	}
	return &p, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	res, err := query[[]models.Post](ctx, c, `SELECT * FROM type::record("post", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, storeErr("get post", err)
	}
	p, ok := first(res)
	if !ok {
		return nil, notFound("get post", id)
	}
	return &p, nil
}

func (c *Client) ListPostsExcludingAuthor(ctx context.Context, author string, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = 100
	}
	res, err := query[[]models.Post](ctx, c, `
		SELECT * FROM post WHERE author_id != $author ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"author": author, "limit": limit})
	if err != nil {
		return nil, storeErr("list posts", err)
	}
	return rows(res), nil
}

func (c *Client) ListPostsByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	res, err := query[[]models.Post](ctx, c, `
		SELECT * FROM post WHERE author_id = $author ORDER BY created_at
	`, map[string]any{"author": author})
	if err != nil {
		return nil, storeErr("list posts by author", err)
	}
	return rows(res), nil
}

// IncrementPostCounter bumps one of the models.Counter* fields.
func (c *Client) IncrementPostCounter(ctx context.Context, postID, counter string) error {
	if counter != models.CounterLikes && counter != models.CounterDislikes {
		return &models.ValidationError{Field: "counter", Reason: fmt.Sprintf("unknown counter %q", counter)}
	}
	// counter is one of two constants, safe to interpolate
	sql := fmt.Sprintf(`UPDATE type::record("post", $id) SET %s += 1, updated_at = time::now() RETURN AFTER`, counter)
	res, err := query[[]models.Post](ctx, c, sql, map[string]any{"id": postID})
	if err != nil {
		return storeErr("increment post counter", err)
	}
	if _, ok := first(res); !ok {
		return notFound("increment post counter", postID)
	}
	return nil
}

// AddComment inserts the comment and updates the post's count and id list
// in one transaction.
func (c *Client) AddComment(ctx context.Context, in models.CommentInput) (*models.Comment, error) {
	id := uuid.New().String()
	_, err := query[any](ctx, c, `
		BEGIN TRANSACTION;
		LET $post = (UPDATE type::record("post", $post_id)
			SET comments_count += 1, comments += $comment_id, updated_at = time::now()
			RETURN AFTER);
		IF array::len($post) = 0 {
			THROW "post not found: " + $post_id;
		};
		CREATE type::record("comment", $comment_id) CONTENT {
			post_id: $post_id,
			author_id: $author_id,
			content: $content,
			created_at: time::now()
		};
		COMMIT TRANSACTION;
	`, map[string]any{
		"comment_id": id,
		"post_id":    in.PostID,
		"author_id":  in.AuthorID,
		"content":    in.Content,
	})
	if err != nil {
		return nil, storeErr("add comment", err)
	}
	return c.GetComment(ctx, id)
}

func (c *Client) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	res, err := query[[]models.Comment](ctx, c, `SELECT * FROM type::record("comment", $id)`, map[string]any{"id": id})
	if err != nil {
		return nil, storeErr("get comment", err)
	}
	cm, ok := first(res)
	if !ok {
		return nil, notFound("get comment", id)
	}
	return &cm, nil
}
