package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/honeytrap/internal/content"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
)

// maxInteractPosts bounds the candidate set an interaction draws from.
const maxInteractPosts = 100

// Interaction kinds, drawn uniformly.
const (
	interactLike = iota
	interactDislike
	interactComment
	interactKinds
)

// BehaviorService implements the scheduler job handlers that make decoys
// look alive.
type BehaviorService struct {
	store     Store
	oracle    Oracle
	gen       *content.Generator
	activity  *activityLog
	friends   *FriendService
	detection *DetectionService
}

// NewBehaviorService creates a new behavior service.
func NewBehaviorService(store Store, oracle Oracle, gen *content.Generator, activity *activityLog, friends *FriendService, detection *DetectionService) *BehaviorService {
	return &BehaviorService{
		store:     store,
		oracle:    oracle,
		gen:       gen,
		activity:  activity,
		friends:   friends,
		detection: detection,
	}
}

// Register binds every behavior action to sched.
func (s *BehaviorService) Register(sched *scheduler.Scheduler) {
	sched.Register(ActionCreatePost, s.handleCreatePost)
	sched.Register(ActionSendFriendRequest, s.handleSendFriendRequest)
	sched.Register(ActionAcceptFriendRequest, s.handleAcceptFriendRequest)
	sched.Register(ActionInteract, s.handleInteract)
	sched.Register(ActionAnalyze, s.handleAnalyze)
}

func (s *BehaviorService) handleCreatePost(ctx context.Context, args map[string]string) error {
	username, err := requireArg(args, ArgUsername)
	if err != nil {
		return err
	}
	_, err = s.CreatePost(ctx, username)
	return err
}

func (s *BehaviorService) handleSendFriendRequest(ctx context.Context, args map[string]string) error {
	username, err := requireArg(args, ArgUsername)
	if err != nil {
		return err
	}
	_, _, err = s.friends.SendFromDecoy(ctx, username)
	return err
}

func (s *BehaviorService) handleAcceptFriendRequest(ctx context.Context, args map[string]string) error {
	username, err := requireArg(args, ArgUsername)
	if err != nil {
		return err
	}
	friend, err := requireArg(args, ArgFriend)
	if err != nil {
		return err
	}
	_, err = s.friends.Accept(ctx, username, friend)
	return err
}

func (s *BehaviorService) handleInteract(ctx context.Context, args map[string]string) error {
	username, err := requireArg(args, ArgUsername)
	if err != nil {
		return err
	}
	return s.Interact(ctx, username)
}

func (s *BehaviorService) handleAnalyze(ctx context.Context, _ map[string]string) error {
	_, err := s.detection.Sweep(ctx)
	return err
}

// CreatePost publishes a post as the decoy, themed on its purpose. Oracle
// failures or unusable output fall back to the template catalogue.
func (s *BehaviorService) CreatePost(ctx context.Context, username string) (*models.Post, error) {
	decoy, err := s.store.GetDecoy(ctx, username)
	if err != nil {
		return nil, err
	}

	title, body := s.postText(ctx, decoy.Purpose)
	post, err := s.store.CreatePost(ctx, models.PostInput{
		Title:    title,
		Content:  body,
		AuthorID: username,
		Hashtags: content.Hashtags(body),
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.activity.record(ctx, username, "Created post: "+title)
	slog.Debug("decoy posted", "username", username, "title", title)
	return post, nil
}

func (s *BehaviorService) postText(ctx context.Context, purpose string) (title, body string) {
	prompt := fmt.Sprintf(
		"Write a short, eye-catching social media post for an account interested in: %s. "+
			"Put the title on the first line and the post text below it.",
		purpose)

	text, err := s.oracle.Generate(ctx, prompt, nil)
	if err == nil {
		if t, b, ok := content.ParsePost(text); ok && !content.Degenerate(t) && !content.Degenerate(b) {
			return t, b
		}
		slog.Debug("oracle post rejected, using template")
	} else {
		slog.Debug("post oracle failed, using template", "error", err)
	}
	return s.gen.Post()
}

// Interact likes, dislikes or comments on a random post by someone else. It
// does nothing when there is no such post.
func (s *BehaviorService) Interact(ctx context.Context, username string) error {
	posts, err := s.store.ListPostsExcludingAuthor(ctx, username, maxInteractPosts)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		slog.Debug("no posts to interact with", "username", username)
		return nil
	}
	post := posts[s.gen.IntN(len(posts))]
	postID, err := models.RecordIDString(post.ID)
	if err != nil {
		return err
	}

	switch s.gen.IntN(interactKinds) {
	case interactLike:
		if err := s.store.IncrementPostCounter(ctx, postID, models.CounterLikes); err != nil {
			return err
		}
		s.activity.record(ctx, username, "Liked post "+post.Title)
	case interactDislike:
		if err := s.store.IncrementPostCounter(ctx, postID, models.CounterDislikes); err != nil {
			return err
		}
		s.activity.record(ctx, username, "Disliked post "+post.Title)
	default:
		text := s.commentText(ctx, post.Title, post.Content)
		if _, err := s.store.AddComment(ctx, models.CommentInput{PostID: postID, AuthorID: username, Content: text}); err != nil {
			return err
		}
		s.activity.record(ctx, username, fmt.Sprintf("Commented on post %s: %s", post.Title, text))
	}
	return nil
}

func (s *BehaviorService) commentText(ctx context.Context, title, body string) string {
	prompt := fmt.Sprintf(
		"Write a short, friendly one-sentence comment on a post titled %q that says: %s",
		title, body)

	text, err := s.oracle.Generate(ctx, prompt, nil)
	if err == nil {
		if c := content.FirstLine(text); !content.Degenerate(c) {
			return c
		}
	}
	return s.gen.Comment(title)
}

func requireArg(args map[string]string, key string) (string, error) {
	v := args[key]
	if v == "" {
		return "", &models.ValidationError{Field: key, Reason: "missing job argument"}
	}
	return v, nil
}
