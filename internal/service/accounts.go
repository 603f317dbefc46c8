package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// AccountProfile is an account together with the posts it authored.
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

// AccountService provisions the non-decoy accounts that take part in the
// friend graph and conversations.
type AccountService struct {
	store Store
}

// NewAccountService creates a new account service.
func NewAccountService(store Store) *AccountService {
	return &AccountService{store: store}
}

// Create registers a regular account. The username must be unused by any
// account or decoy; email is optional.
func (s *AccountService) Create(ctx context.Context, username, email string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, &models.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, &models.ValidationError{Field: "email", Reason: "invalid address"}
		}
	}

	a, err := s.store.CreateAccount(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	slog.Info("account created", "username", username)
	return a, nil
}

// Get returns the account and its posts, oldest first.
func (s *AccountService) Get(ctx context.Context, username string) (*AccountProfile, error) {
	a, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.ListPostsByAuthor(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list posts of %s: %w", username, err)
	}
	return &AccountProfile{Account: *a, Posts: posts}, nil
}

// Friends returns the friends and pending incoming requests of username.
func (s *AccountService) Friends(ctx context.Context, username string) (*FriendList, error) {
	a, err := s.store.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	return &FriendList{Username: a.Username, Friends: a.Friends, FriendRequests: a.FriendRequests}, nil
}
