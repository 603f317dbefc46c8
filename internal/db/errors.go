package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// models sentinel if it's a known query error. Returns the original error
// otherwise.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, "already exists"):
			return fmt.Errorf("%w: %s", models.ErrAlreadyExists, msg)
		case strings.Contains(msg, "Transaction conflict"), strings.Contains(msg, "transaction conflict"):
			return fmt.Errorf("%w: %s", models.ErrConflict, msg)
		case strings.Contains(msg, "not found"):
			return fmt.Errorf("%w: %s", models.ErrNotFound, msg)
		}
	}

	return err
}

// storeErr maps err and wraps it as a *models.StoreError for op.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &models.StoreError{Op: op, Err: wrapQueryError(err)}
}

func notFound(op, what string) error {
	return &models.StoreError{Op: op, Err: fmt.Errorf("%w: %s", models.ErrNotFound, what)}
}
