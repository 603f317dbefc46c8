package models

import "time"

// LogEntry is one observable action in the append-only interaction log.
type LogEntry struct {
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// LogFilter narrows log reads. Zero values mean "no filter".
type LogFilter struct {
	Username       string
	ActionContains string // case-insensitive substring
	Limit          int
}
