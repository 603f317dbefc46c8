package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

func sessionVars(initiator, counterpart string) map[string]any {
	return map[string]any{
		"key":         models.SessionKey(initiator, counterpart),
		"initiator":   initiator,
		"counterpart": counterpart,
	}
}

// GetOrCreateSession creates the session record for the pair; CREATE fails
// when it already exists, in which case the stored one is returned.
func (c *Client) GetOrCreateSession(ctx context.Context, initiator, counterpart, opening string) (*models.ConversationSession, bool, error) {
	vars := sessionVars(initiator, counterpart)
	vars["opening"] = opening

	res, err := query[[]models.ConversationSession](ctx, c, `
		CREATE type::record("conversation", $key) CONTENT {
			initiator: $initiator,
			counterpart: $counterpart,
			opening: $opening,
			history: [],
			status: "ongoing",
			created_at: time::now()
		} RETURN AFTER
	`, vars)
	if err != nil {
		err = storeErr("create session", err)
		if !errors.Is(err, models.ErrAlreadyExists) {
			return nil, false, err
		}
		s, getErr := c.GetSession(ctx, initiator, counterpart)
		return s, false, getErr
	}
	s, ok := first(res)
	if !ok {
		return nil, false, storeErr("create session", errors.New("no result returned"))
	}
	return &s, true, nil
}

func (c *Client) GetSession(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	res, err := query[[]models.ConversationSession](ctx, c,
		`SELECT * FROM type::record("conversation", $key)`, sessionVars(initiator, counterpart))
	if err != nil {
		return nil, storeErr("get session", err)
	}
	s, ok := first(res)
	if !ok {
		return nil, notFound("get session", initiator+"/"+counterpart)
	}
	return &s, nil
}

// AppendTurns extends history only while the session is ongoing.
func (c *Client) AppendTurns(ctx context.Context, initiator, counterpart string, turns ...models.Turn) (*models.ConversationSession, error) {
	vars := sessionVars(initiator, counterpart)
	vars["turns"] = turns

	res, err := query[[]models.ConversationSession](ctx, c, `
		UPDATE type::record("conversation", $key)
			SET history = array::concat(history, $turns)
			WHERE status = "ongoing"
			RETURN AFTER
	`, vars)
	if err != nil {
		return nil, storeErr("append turns", err)
	}
	if s, ok := first(res); ok {
		return &s, nil
	}
	if _, err := c.GetSession(ctx, initiator, counterpart); err != nil {
		return nil, err
	}
	return nil, &models.StoreError{Op: "append turns", Err: fmt.Errorf("%w: session completed", models.ErrConflict)}
}

// CompleteSession writes the result iff the session is still ongoing. The
// WHERE guard makes the first writer win.
func (c *Client) CompleteSession(ctx context.Context, initiator, counterpart, result string) (bool, error) {
	vars := sessionVars(initiator, counterpart)
	vars["result"] = result

	res, err := query[[]models.ConversationSession](ctx, c, `
		UPDATE type::record("conversation", $key)
			SET status = "completed", result = $result, completed_at = time::now()
			WHERE status = "ongoing"
			RETURN AFTER
	`, vars)
	if err != nil {
		return false, storeErr("complete session", err)
	}
	if _, ok := first(res); ok {
		return true, nil
	}
	if _, err := c.GetSession(ctx, initiator, counterpart); err != nil {
		return false, err
	}
	return false, nil
}

// ReopenSession resets a completed session, moving its verdict to
// prior_results. The WHERE guard leaves an ongoing one untouched.
func (c *Client) ReopenSession(ctx context.Context, initiator, counterpart, opening string) (*models.ConversationSession, bool, error) {
	vars := sessionVars(initiator, counterpart)
	vars["opening"] = opening

	res, err := query[[]models.ConversationSession](ctx, c, `
		UPDATE type::record("conversation", $key)
			SET prior_results = array::append(prior_results ?? [], result),
				opening = $opening, history = [], status = "ongoing",
				result = NONE, completed_at = NONE, created_at = time::now()
			WHERE status = "completed"
			RETURN AFTER
	`, vars)
	if err != nil {
		return nil, false, storeErr("reopen session", err)
	}
	if s, ok := first(res); ok {
		return &s, true, nil
	}
	s, err := c.GetSession(ctx, initiator, counterpart)
	return s, false, err
}
