package models

import (
	"slices"
	"strconv"
	"strings"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SessionStatus is the lifecycle state of a conversation probe.
type SessionStatus string

const (
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
)

// Classification labels produced by the conversational probe.
const (
	ClassGenuine    = "genuine"
	ClassSuspicious = "suspicious"
	ClassFraud      = "fraud"
	ClassBot        = "bot"
)

// Classifications lists every valid probe verdict.
var Classifications = []string{ClassGenuine, ClassSuspicious, ClassFraud, ClassBot}

// Turn is one message in a probe transcript.
type Turn struct {
	IsDecoy bool   `json:"is_decoy"`
	Message string `json:"message"`
}

// ConversationSession is a multi-turn genuineness probe between a decoy
// (initiator) and a live counterpart. PriorResults holds the verdicts of
// earlier rounds for the same pair, oldest first.
type ConversationSession struct {
	ID           surrealmodels.RecordID `json:"id"`
	Initiator    string                 `json:"initiator"`
	Counterpart  string                 `json:"counterpart"`
	Opening      string                 `json:"opening"`
	History      []Turn                 `json:"history"`
	Status       SessionStatus          `json:"status"`
	Result       *string                `json:"result,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	PriorResults []string               `json:"prior_results,omitempty"`
}

// SessionKey returns the record key of the session for a pair. The
// initiator's length prefixes the key so that no two pairs share one,
// whatever characters the names contain.
func SessionKey(initiator, counterpart string) string {
	return strconv.Itoa(len(initiator)) + ":" + initiator + "|" + counterpart
}

// ParseClassification extracts a verdict from free-form oracle output. A
// label counts only when it is not negated ("not genuine", "isn't a bot").
// Any non-genuine label outranks genuine, and a negated genuine with no
// other label reads as suspicious. ok is false when nothing usable is present.
func ParseClassification(text string) (label string, ok bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
	var genuine, notGenuine bool
	for i, w := range words {
		if !slices.Contains(Classifications, w) {
			continue
		}
		if negated(words[:i]) {
			notGenuine = notGenuine || w == ClassGenuine
			continue
		}
		if w != ClassGenuine {
			return w, true
		}
		genuine = true
	}
	switch {
	case genuine:
		return ClassGenuine, true
	case notGenuine:
		return ClassSuspicious, true
	}
	return "", false
}

var negations = []string{"not", "no", "never", "t", "isn", "nor"}

// negated reports whether a negation sits within the two words before a
// label, e.g. "not genuine" or "not a bot".
func negated(before []string) bool {
	for i := len(before) - 1; i >= 0 && i >= len(before)-2; i-- {
		if slices.Contains(negations, before[i]) {
			return true
		}
	}
	return false
}

// Done reports whether the session reached its terminal state.
func (s *ConversationSession) Done() bool {
	return s.Status == SessionCompleted
}
