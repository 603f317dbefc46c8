package db

import (
	"context"
	"errors"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// CreateDecoy inserts the decoy and its account in one transaction. CREATE
// fails on an existing record id, which aborts both writes.
func (c *Client) CreateDecoy(ctx context.Context, in models.DecoyInput) (*models.Decoy, error) {
	_, err := query[any](ctx, c, `
		BEGIN TRANSACTION;
		CREATE type::record("honeytrap", $username) CONTENT {
			username: $username,
			email: $email,
			purpose: $purpose,
			friends: [],
			friend_requests: [],
			created_at: time::now()
		};
		CREATE type::record("account", $username) CONTENT {
			username: $username,
			email: $email,
			is_decoy: true,
			friends: [],
			friend_requests: [],
			created_at: time::now()
		};
		COMMIT TRANSACTION;
	`, map[string]any{
		"username": in.Username,
		"email":    in.Email,
		"purpose":  in.Purpose,
	})
	if err != nil {
		return nil, storeErr("create decoy", err)
	}
	return c.GetDecoy(ctx, in.Username)
}

func (c *Client) GetDecoy(ctx context.Context, username string) (*models.Decoy, error) {
	res, err := query[[]models.Decoy](ctx, c, `SELECT * FROM type::record("honeytrap", $username)`,
		map[string]any{"username": username})
	if err != nil {
		return nil, storeErr("get decoy", err)
	}
	d, ok := first(res)
	if !ok {
		return nil, notFound("get decoy", username)
	}
	return &d, nil
}

func (c *Client) ListDecoys(ctx context.Context) ([]models.Decoy, error) {
	res, err := query[[]models.Decoy](ctx, c, `SELECT * FROM honeytrap ORDER BY created_at, username`, nil)
	if err != nil {
		return nil, storeErr("list decoys", err)
	}
	return rows(res), nil
}

func (c *Client) ListDecoyUsernames(ctx context.Context, exclude string) ([]string, error) {
	res, err := query[[]string](ctx, c, `SELECT VALUE username FROM honeytrap WHERE username != $exclude ORDER BY username`,
		map[string]any{"exclude": exclude})
	if err != nil {
		return nil, storeErr("list decoy usernames", err)
	}
	return rows(res), nil
}

func (c *Client) CreateAccount(ctx context.Context, username, email string) (*models.Account, error) {
	res, err := query[[]models.Account](ctx, c, `
		CREATE type::record("account", $username) CONTENT {
			username: $username,
			email: $email,
			is_decoy: false,
			friends: [],
			friend_requests: [],
			created_at: time::now()
		} RETURN AFTER
	`, map[string]any{"username": username, "email": email})
	if err != nil {
		return nil, storeErr("create account", err)
	}
	a, ok := first(res)
	if !ok {
		return nil, storeErr("create account", errors.New("no result returned"))
	}
	return &a, nil
}

func (c *Client) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	res, err := query[[]models.Account](ctx, c, `SELECT * FROM type::record("account", $username)`,
		map[string]any{"username": username})
	if err != nil {
		return nil, storeErr("get account", err)
	}
	a, ok := first(res)
	if !ok {
		return nil, notFound("get account", username)
	}
	return &a, nil
}
