package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/honeytrap/internal/content"
	"github.com/raphaelgruber/honeytrap/internal/memstore"
	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
	"github.com/raphaelgruber/honeytrap/internal/scheduler"
)

var errOracleDown = errors.New("oracle unavailable")

// fakeOracle is a scriptable Oracle. Nil funcs fail with errOracleDown.
type fakeOracle struct {
	mu            sync.Mutex
	generate      func(prompt string, history []models.Turn) (string, error)
	classify      func(transcript string) (string, error)
	generateCalls int
	classifyCalls int
}

func (f *fakeOracle) Generate(_ context.Context, prompt string, history []models.Turn) (string, error) {
	f.mu.Lock()
	f.generateCalls++
	fn := f.generate
	f.mu.Unlock()
	if fn == nil {
		return "", errOracleDown
	}
	return fn(prompt, history)
}

func (f *fakeOracle) Classify(_ context.Context, transcript string) (string, error) {
	f.mu.Lock()
	f.classifyCalls++
	fn := f.classify
	f.mu.Unlock()
	if fn == nil {
		return "", errOracleDown
	}
	return fn(transcript)
}

func (f *fakeOracle) classifications() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classifyCalls
}

// testOptions keeps every campaign far in the future unless a test
// shortens it.
func testOptions() Options {
	return Options{
		PostJobs:         5,
		PostDelayMin:     time.Hour,
		PostDelayMax:     time.Hour,
		FriendInterval:   time.Hour,
		InteractInterval: time.Hour,
		AnalyzeInterval:  time.Hour,
		AcceptDelay:      time.Hour,
		PersistJobs:      true,
		LogWindow:        DefaultLogWindow,
		TypingCPS:        40,
		MaxTypingDelay:   30 * time.Second,
		Sleep:            func(context.Context, time.Duration) error { return nil },
	}
}

type harness struct {
	svc     *Services
	store   *memstore.MemStore
	sched   *scheduler.Scheduler
	oracle  *fakeOracle
	metrics *metrics.Collector
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	return newHarnessOn(t, memstore.New(), opts)
}

// newHarnessOn builds fresh services and a fresh scheduler over store.
func newHarnessOn(t *testing.T, store *memstore.MemStore, opts Options) *harness {
	t.Helper()
	mc := metrics.NewCollector()
	sched := scheduler.New(scheduler.Options{Workers: 4, Store: store, Metrics: mc})
	oracle := &fakeOracle{}

	svc := New(Deps{
		Store:     store,
		Oracle:    oracle,
		Scheduler: sched,
		Generator: content.NewGenerator(rand.New(rand.NewPCG(1, 2))),
		Metrics:   mc,
		Options:   opts,
	})
	t.Cleanup(func() {
		svc.Decoys.Wait()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	})
	return &harness{svc: svc, store: store, sched: sched, oracle: oracle, metrics: mc}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sched.Start(context.Background()))
}

func (h *harness) seedDecoys(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		_, err := h.store.CreateDecoy(context.Background(), models.DecoyInput{Username: n, Email: n + "@example.com", Purpose: "test"})
		require.NoError(t, err)
	}
}

func (h *harness) logActions(t *testing.T, username string) []string {
	t.Helper()
	entries, err := h.store.ListLogs(context.Background(), models.LogFilter{Username: username})
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func (h *harness) jobIDs() []string {
	var ids []string
	for _, j := range h.sched.Jobs() {
		ids = append(ids, j.ID)
	}
	return ids
}
