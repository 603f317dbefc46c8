// Package detect implements the batch analyzers that turn the interaction log
// into (username, reason) signals.
package detect

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/honeytrap/internal/models"
)

// Reasons emitted by the batch analyzers.
const (
	ReasonHighFrequency = "high-frequency interaction"
	ReasonSpammyContent = "spammy content"
	ReasonTimeOfDay     = "time-based interaction pattern"
)

const (
	// WindowSize is the index distance between the first and last entry of
	// a burst window, so a burst is WindowSize+1 entries.
	WindowSize = 10
	// WindowSpan is the span a burst window must stay under to be flagged.
	WindowSpan = 60 * time.Second
)

// SpamPatterns are matched case-insensitively against comment log actions.
var SpamPatterns = []string{"http", "www", "click here", "buy now", "free", "!!!", "###"}

// Signal is one analyzer verdict about a user.
type Signal struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
	Analyzer string `json:"analyzer"`
}

// Analyzer inspects a log snapshot. Implementations must be pure and
// deterministic: the same entries always yield the same signals.
type Analyzer interface {
	Name() string
	Detect(entries []models.LogEntry) []Signal
}

// Default returns one instance of every batch analyzer.
func Default() []Analyzer {
	return []Analyzer{Frequency{}, Content{}, TimeOfDay{}}
}

// Run applies every analyzer and returns the combined signals, deduplicated
// on (username, reason) and in analyzer order.
func Run(entries []models.LogEntry, analyzers ...Analyzer) []Signal {
	type key struct{ user, reason string }
	seen := make(map[key]bool)
	var out []Signal
	for _, a := range analyzers {
		for _, s := range a.Detect(entries) {
			k := key{s.Username, s.Reason}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}

// Frequency flags users with WindowSize+1 interactions inside WindowSpan.
type Frequency struct{}

func (Frequency) Name() string { return "frequency" }

func (f Frequency) Detect(entries []models.LogEntry) []Signal {
	return bursts(entries, func(t time.Time) int64 { return t.UnixNano() }, ReasonHighFrequency, f.Name())
}

// TimeOfDay runs the frequency window on time-of-day only, so the same
// minute repeated across different days still counts as one burst.
type TimeOfDay struct{}

func (TimeOfDay) Name() string { return "time_of_day" }

func (a TimeOfDay) Detect(entries []models.LogEntry) []Signal {
	return bursts(entries, sinceMidnight, ReasonTimeOfDay, a.Name())
}

// Content flags users whose comment actions contain a spam pattern.
type Content struct{}

func (Content) Name() string { return "content" }

func (c Content) Detect(entries []models.LogEntry) []Signal {
	flagged := make(map[string]bool)
	for _, e := range entries {
		action := strings.ToLower(e.Action)
		if !strings.Contains(action, "commented") {
			continue
		}
		if containsAny(action, SpamPatterns) {
			flagged[e.Username] = true
		}
	}

	var out []Signal
	for _, user := range sortedKeys(flagged) {
		out = append(out, Signal{Username: user, Reason: ReasonSpammyContent, Analyzer: c.Name()})
	}
	return out
}

// IsSpammy reports whether text contains any spam pattern.
func IsSpammy(text string) bool {
	return containsAny(strings.ToLower(text), SpamPatterns)
}

// bursts groups entries per user, projects each timestamp with key and flags
// every user having a burst window.
func bursts(entries []models.LogEntry, key func(time.Time) int64, reason, analyzer string) []Signal {
	byUser := make(map[string][]int64)
	for _, e := range entries {
		byUser[e.Username] = append(byUser[e.Username], key(e.Timestamp))
	}

	flagged := make(map[string]bool)
	for user, ts := range byUser {
		if burst(ts) {
			flagged[user] = true
		}
	}

	var out []Signal
	for _, user := range sortedKeys(flagged) {
		out = append(out, Signal{Username: user, Reason: reason, Analyzer: analyzer})
	}
	return out
}

func burst(ts []int64) bool {
	if len(ts) <= WindowSize {
		return false
	}
	slices.Sort(ts)
	for i := 0; i+WindowSize < len(ts); i++ {
		if time.Duration(ts[i+WindowSize]-ts[i]) < WindowSpan {
			return true
		}
	}
	return false
}

// sinceMidnight uses the timestamp's own location, so the log's recorded
// wall clock is what gets compared.
func sinceMidnight(t time.Time) int64 {
	h, m, s := t.Clock()
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
	return int64(d)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
