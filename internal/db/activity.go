package db

import (
	"context"
	"strings"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

func (c *Client) AppendLog(ctx context.Context, entry models.LogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	_, err := query[any](ctx, c, `
		CREATE activity_log CONTENT { username: $username, action: $action, timestamp: $timestamp }
	`, map[string]any{
		"username":  entry.Username,
		"action":    entry.Action,
		"timestamp": entry.Timestamp,
	})
	if err != nil {
		return storeErr("append log", err)
	}
	return nil
}

// ListLogs returns matching entries, newest first.
func (c *Client) ListLogs(ctx context.Context, f models.LogFilter) ([]models.LogEntry, error) {
	var where []string
	vars := map[string]any{}
	if f.Username != "" {
		where = append(where, "username = $username")
		vars["username"] = f.Username
	}
	if f.ActionContains != "" {
		where = append(where, "string::contains(string::lowercase(action), $needle)")
		vars["needle"] = strings.ToLower(f.ActionContains)
	}

	var sql strings.Builder
	sql.WriteString("SELECT username, action, timestamp FROM activity_log")
	if len(where) > 0 {
		sql.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sql.WriteString(" ORDER BY timestamp DESC")
	if f.Limit > 0 {
		sql.WriteString(" LIMIT $limit")
		vars["limit"] = f.Limit
	}

	res, err := query[[]models.LogEntry](ctx, c, sql.String(), vars)
	if err != nil {
		return nil, storeErr("list logs", err)
	}
	return rows(res), nil
}
