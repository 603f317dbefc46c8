package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/raphaelgruber/honeytrap/internal/content"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

// ProbeTurnThreshold is the history length at which a session is classified.
const ProbeTurnThreshold = 10

const openerPrompt = "Start a casual conversation with someone you just met on a social network. " +
	"Reply with one short, friendly opening message only."

// FeedResult is the outcome of one counterpart message.
type FeedResult struct {
	Reply   string                      `json:"reply,omitempty"`
	Delay   time.Duration               `json:"delay"`
	Session *models.ConversationSession `json:"session"`
}

// ProbeService runs multi-turn conversations between a decoy and a live
// counterpart and classifies the counterpart once enough turns are in.
type ProbeService struct {
	store     Store
	oracle    Oracle
	gen       *content.Generator
	activity  *activityLog
	detection *DetectionService
	metrics   *metrics.Collector

	typingCPS int
	maxDelay  time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	locks    pairLocks
	classify singleflight.Group
}

// NewProbeService creates a new probe service.
func NewProbeService(store Store, oracle Oracle, gen *content.Generator, activity *activityLog, detection *DetectionService, mc *metrics.Collector, opts Options) *ProbeService {
	cps := opts.TypingCPS
	if cps <= 0 {
		cps = 40
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &ProbeService{
		store:     store,
		oracle:    oracle,
		gen:       gen,
		activity:  activity,
		detection: detection,
		metrics:   mc,
		typingCPS: cps,
		maxDelay:  opts.MaxTypingDelay,
		sleep:     sleep,
		locks:     pairLocks{m: make(map[string]*pairLock)},
	}
}

// Start returns the active session for the pair, creating it with a fresh
// opening line if none exists. A completed session is reopened as a new
// round; its verdict moves to PriorResults and is never recomputed.
func (s *ProbeService) Start(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	if err := validatePair(initiator, counterpart, "initiator", "counterpart"); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(models.SessionKey(initiator, counterpart))
	defer unlock()

	session, err := s.start(ctx, initiator, counterpart)
	if err != nil || !session.Done() {
		return session, err
	}
	session, reopened, err := s.store.ReopenSession(ctx, initiator, counterpart, s.opener(ctx))
	if err != nil {
		return nil, fmt.Errorf("reopen probe: %w", err)
	}
	if reopened {
		slog.Info("probe reopened", "initiator", initiator, "counterpart", counterpart)
	}
	return session, nil
}

func (s *ProbeService) start(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	session, err := s.store.GetSession(ctx, initiator, counterpart)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	session, created, err := s.store.GetOrCreateSession(ctx, initiator, counterpart, s.opener(ctx))
	if err != nil {
		return nil, fmt.Errorf("start probe: %w", err)
	}
	if created {
		slog.Info("probe started", "initiator", initiator, "counterpart", counterpart)
	}
	return session, nil
}

// Feed appends the counterpart's message, generates and appends the decoy's
// reply after a typing delay, and classifies the session once it reaches
// ProbeTurnThreshold turns. Messages for the same pair are handled one at a
// time. A completed session takes no new turns; its state is returned with
// an empty reply.
func (s *ProbeService) Feed(ctx context.Context, initiator, counterpart, message string) (*FeedResult, error) {
	if err := validatePair(initiator, counterpart, "initiator", "counterpart"); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &models.ValidationError{Field: "message", Reason: "must not be empty"}
	}

	key := models.SessionKey(initiator, counterpart)
	unlock := s.locks.lock(key)
	defer unlock()

	session, err := s.start(ctx, initiator, counterpart)
	if err != nil {
		return nil, err
	}
	if session.Done() {
		return &FeedResult{Session: session}, nil
	}

	session, err = s.store.AppendTurns(ctx, initiator, counterpart, models.Turn{Message: message})
	if errors.Is(err, models.ErrConflict) {
		return s.completed(ctx, initiator, counterpart)
	}
	if err != nil {
		return nil, fmt.Errorf("append counterpart turn: %w", err)
	}
	s.activity.record(ctx, counterpart, "Messaged "+initiator)

	reply := s.reply(ctx, session.History)
	delay := s.typingDelay(reply)
	if err := s.sleep(ctx, delay); err != nil {
		return nil, err
	}

	session, err = s.store.AppendTurns(ctx, initiator, counterpart, models.Turn{IsDecoy: true, Message: reply})
	if errors.Is(err, models.ErrConflict) {
		return s.completed(ctx, initiator, counterpart)
	}
	if err != nil {
		return nil, fmt.Errorf("append decoy turn: %w", err)
	}

	if len(session.History) >= ProbeTurnThreshold {
		if _, err := s.Classify(ctx, session); err != nil {
			return nil, err
		}
		if session, err = s.store.GetSession(ctx, initiator, counterpart); err != nil {
			return nil, err
		}
	}
	return &FeedResult{Reply: reply, Delay: delay, Session: session}, nil
}

// Result returns the session for the pair.
func (s *ProbeService) Result(ctx context.Context, initiator, counterpart string) (*models.ConversationSession, error) {
	return s.store.GetSession(ctx, initiator, counterpart)
}

// Classify settles the session's verdict exactly once. Concurrent callers
// for the same pair share one oracle call, and the store only accepts the
// first result. Returns the label this call computed.
func (s *ProbeService) Classify(ctx context.Context, session *models.ConversationSession) (string, error) {
	key := models.SessionKey(session.Initiator, session.Counterpart)
	v, err, _ := s.classify.Do(key, func() (any, error) {
		label := s.verdict(ctx, session.History)

		won, err := s.store.CompleteSession(ctx, session.Initiator, session.Counterpart, label)
		if err != nil {
			return "", fmt.Errorf("complete probe: %w", err)
		}
		if !won {
			return label, nil
		}

		s.metrics.RecordProbeResult(label)
		slog.Info("probe classified", "initiator", session.Initiator, "counterpart", session.Counterpart, "result", label)
		if label != models.ClassGenuine {
			if _, err := s.detection.Record(ctx, session.Counterpart, "conversational: classified as "+label); err != nil {
				return label, err
			}
		}
		return label, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// verdict asks the oracle for a label; anything it cannot parse counts as
// suspicious.
func (s *ProbeService) verdict(ctx context.Context, history []models.Turn) string {
	raw, err := s.oracle.Classify(ctx, Transcript(history))
	if err != nil {
		slog.Warn("classification failed, defaulting to suspicious", "error", err)
		return models.ClassSuspicious
	}
	label, ok := models.ParseClassification(raw)
	if !ok {
		slog.Warn("unparseable classification, defaulting to suspicious", "raw", raw)
		return models.ClassSuspicious
	}
	return label
}

func (s *ProbeService) opener(ctx context.Context) string {
	text, err := s.oracle.Generate(ctx, openerPrompt, nil)
	if err == nil {
		if line := content.FirstLine(text); !content.Degenerate(line) {
			return line
		}
	}
	return s.gen.Opener()
}

func (s *ProbeService) reply(ctx context.Context, history []models.Turn) string {
	text, err := s.oracle.Generate(ctx, "", history)
	if err == nil {
		if r := content.Clean(text); !content.Degenerate(r) {
			return r
		}
	} else {
		slog.Debug("reply oracle failed, using template", "error", err)
	}
	return s.gen.Reply()
}

// typingDelay is len(reply)/typingCPS seconds, capped at maxDelay.
func (s *ProbeService) typingDelay(reply string) time.Duration {
	d := time.Duration(len(reply)) * time.Second / time.Duration(s.typingCPS)
	if s.maxDelay > 0 && d > s.maxDelay {
		d = s.maxDelay
	}
	return d
}

func (s *ProbeService) completed(ctx context.Context, initiator, counterpart string) (*FeedResult, error) {
	session, err := s.store.GetSession(ctx, initiator, counterpart)
	if err != nil {
		return nil, err
	}
	return &FeedResult{Session: session}, nil
}

// Transcript renders a history as "Decoy:"/"User:" lines.
func Transcript(history []models.Turn) string {
	var b strings.Builder
	for _, t := range history {
		if t.IsDecoy {
			b.WriteString("Decoy: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(t.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pairLocks hands out one mutex per conversation pair and forgets it once
// nobody holds or waits on it.
type pairLocks struct {
	mu sync.Mutex
	m  map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func (p *pairLocks) lock(key string) (unlock func()) {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		l = &pairLock{}
		p.m[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.m, key)
		}
		p.mu.Unlock()
	}
}
