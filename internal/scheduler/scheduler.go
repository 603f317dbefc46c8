// Package scheduler runs delayed one-shot and fixed-interval background jobs
// with bounded concurrency and a misfire grace period.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/raphaelgruber/honeytrap/internal/metrics"
	"github.com/raphaelgruber/honeytrap/internal/models"
)

// Kind is the shape of a job's schedule.
type Kind string

const (
	OneShot  Kind = "one_shot"
	Interval Kind = "interval"
)

// DefaultGrace is used when neither the job nor the scheduler set one.
const DefaultGrace = 60 * time.Second

var (
	ErrUnknownAction  = errors.New("no handler registered for action")
	ErrJobExists      = errors.New("job already scheduled")
	ErrInvalidJob     = errors.New("invalid job")
	ErrStopped        = errors.New("scheduler stopped")
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Handler executes one occurrence of a job.
type Handler func(ctx context.Context, args map[string]string) error

// Job describes a unit of scheduled work.
type Job struct {
	ID     string
	Kind   Kind
	Action string
	Args   map[string]string

	// FireAt is the run time of a one-shot job. Zero means now.
	FireAt time.Time
	// Every is the period of an interval job. The first run is one period
	// after submission.
	Every time.Duration
	// Grace bounds how late a run may start. Zero uses the scheduler default.
	Grace time.Duration
	// Persist mirrors a one-shot job to the JobStore until it has run.
	Persist bool
}

// JobInfo is a point-in-time view of a scheduled job.
type JobInfo struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Action    string            `json:"action"`
	Args      map[string]string `json:"args,omitempty"`
	NextRun   time.Time         `json:"next_run"`
	Every     time.Duration     `json:"every,omitempty"`
	Persisted bool              `json:"persisted"`
	Running   bool              `json:"running"`
	Runs      int64             `json:"runs"`
	Misfires  int64             `json:"misfires"`
	Failures  int64             `json:"failures"`
	LastError string            `json:"last_error,omitempty"`
}

// JobStore persists pending one-shot jobs across restarts.
type JobStore interface {
	SaveJob(ctx context.Context, job models.PendingJob) error
	DeleteJob(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context) ([]models.PendingJob, error)
}

// Options configures a Scheduler.
type Options struct {
	Workers int
	Grace   time.Duration
	Store   JobStore
	Metrics *metrics.Collector
}

type entry struct {
	job     Job
	created time.Time
	stop    chan struct{}
	running atomic.Bool

	mu       sync.Mutex
	next     time.Time
	runs     int64
	misfires int64
	failures int64
	lastErr  string
}

// Scheduler owns a set of jobs and the goroutines that fire them.
type Scheduler struct {
	mu       sync.Mutex
	handlers map[string]Handler
	jobs     map[string]*entry
	started  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	sem     *semaphore.Weighted
	grace   time.Duration
	store   JobStore
	metrics *metrics.Collector
}

// New creates a scheduler. Jobs submitted before Start wait for it.
func New(opts Options) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = 16
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	return &Scheduler{
		handlers: make(map[string]Handler),
		jobs:     make(map[string]*entry),
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		grace:    opts.Grace,
		store:    opts.Store,
		metrics:  opts.Metrics,
	}
}

// Register binds an action name to its handler. Registering an action twice
// replaces the handler.
func (s *Scheduler) Register(action string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = h
}

// Start launches all submitted jobs and reloads persisted ones. Overdue
// persisted jobs run once immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	var pending []models.PendingJob
	if s.store != nil {
		var err error
		pending, err = s.store.ListJobs(ctx)
		if err != nil {
			return fmt.Errorf("load persisted jobs: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	now := time.Now()
	restored := 0
	for _, p := range pending {
		if _, ok := s.jobs[p.JobID]; ok {
			continue
		}
		if _, ok := s.handlers[p.Action]; !ok {
			slog.Warn("skipping persisted job with unknown action", "job_id", p.JobID, "action", p.Action)
			continue
		}
		fireAt := p.FireAt
		if fireAt.Before(now) {
			fireAt = now
		}
		job := Job{ID: p.JobID, Kind: OneShot, Action: p.Action, Args: p.Args, FireAt: fireAt, Grace: p.Grace, Persist: true}
		s.jobs[job.ID] = s.newEntry(job, p.Created)
		restored++
	}
	if restored > 0 {
		slog.Info("restored persisted jobs", "count", restored)
	}

	for _, e := range s.jobs {
		s.launch(e)
	}
	slog.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels all timers and running handlers and waits for them to return
// or for ctx to expire. Persisted jobs that have not run stay in the store.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// Submit schedules a job and returns its id.
func (s *Scheduler) Submit(ctx context.Context, job Job) (string, error) {
	if err := s.normalize(&job); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", ErrStopped
	}
	if _, ok := s.handlers[job.Action]; !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, job.Action)
	}
	if _, ok := s.jobs[job.ID]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	e := s.newEntry(job, time.Now())
	s.jobs[job.ID] = e
	s.mu.Unlock()

	if job.Persist && s.store != nil {
		err := s.store.SaveJob(ctx, models.PendingJob{
			JobID:   job.ID,
			Action:  job.Action,
			Args:    job.Args,
			FireAt:  job.FireAt,
			Grace:   job.Grace,
			Created: e.created,
		})
		if err != nil {
			s.remove(job.ID)
			return "", fmt.Errorf("persist job %s: %w", job.ID, err)
		}
	}

	s.mu.Lock()
	if s.started && !s.stopped && s.jobs[job.ID] == e {
		s.launch(e)
	}
	s.mu.Unlock()

	slog.Debug("job submitted", "job_id", job.ID, "action", job.Action, "kind", job.Kind)
	return job.ID, nil
}

// Cancel removes a job. It reports whether the job existed. A handler that
// is already running is not interrupted.
func (s *Scheduler) Cancel(ctx context.Context, id string) bool {
	e := s.remove(id)
	if e == nil {
		return false
	}
	close(e.stop)
	if e.job.Persist && s.store != nil {
		if err := s.store.DeleteJob(ctx, id); err != nil {
			slog.Warn("failed to delete persisted job", "job_id", id, "error", err)
		}
	}
	return true
}

// Jobs returns a snapshot of all scheduled jobs ordered by next run.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	infos := make([]JobInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.info())
	}
	slices.SortFunc(infos, func(a, b JobInfo) int {
		if c := a.NextRun.Compare(b.NextRun); c != 0 {
			return c
		}
		return cmpString(a.ID, b.ID)
	})
	return infos
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (s *Scheduler) normalize(job *Job) error {
	if job.Action == "" {
		return fmt.Errorf("%w: missing action", ErrInvalidJob)
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Grace <= 0 {
		job.Grace = s.grace
	}
	switch job.Kind {
	case OneShot, "":
		job.Kind = OneShot
		if job.FireAt.IsZero() {
			job.FireAt = time.Now()
		}
	case Interval:
		if job.Every <= 0 {
			return fmt.Errorf("%w: interval job %s needs a positive period", ErrInvalidJob, job.ID)
		}
		job.Persist = false
		job.FireAt = time.Now().Add(job.Every)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, job.Kind)
	}
	return nil
}

func (s *Scheduler) newEntry(job Job, created time.Time) *entry {
	return &entry{job: job, created: created, stop: make(chan struct{}), next: job.FireAt}
}

// launch starts the timer goroutine for e. Caller must hold s.mu.
func (s *Scheduler) launch(e *entry) {
	s.wg.Add(1)
	go s.loop(s.ctx, e)
}

func (s *Scheduler) remove(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok {
		return nil
	}
	delete(s.jobs, id)
	return e
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	for {
		e.mu.Lock()
		scheduled := e.next
		e.mu.Unlock()

		timer := time.NewTimer(time.Until(scheduled))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-e.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if e.job.Kind == OneShot {
			s.fire(ctx, e, scheduled, true)
			return
		}

		next := scheduled.Add(e.job.Every)
		for now := time.Now(); !next.After(now); {
			next = next.Add(e.job.Every)
		}
		e.mu.Lock()
		e.next = next
		e.mu.Unlock()

		s.fire(ctx, e, scheduled, false)
	}
}

// fire dispatches one occurrence, skipping it when it cannot start within
// the grace period or when the previous run of the same job is still going.
func (s *Scheduler) fire(ctx context.Context, e *entry, scheduled time.Time, last bool) {
	log := slog.With("job_id", e.job.ID, "action", e.job.Action)

	if !e.running.CompareAndSwap(false, true) {
		log.Warn("job skipped, previous run still active")
		s.misfire(e, last)
		return
	}

	deadline := scheduled.Add(e.job.Grace)
	acquireCtx, cancel := context.WithDeadline(ctx, deadline)
	err := s.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil || time.Now().After(deadline) {
		if err == nil {
			s.sem.Release(1)
		}
		e.running.Store(false)
		if ctx.Err() != nil {
			return
		}
		log.Warn("job misfired", "scheduled", scheduled, "grace", e.job.Grace)
		s.misfire(e, last)
		return
	}

	s.mu.Lock()
	h := s.handlers[e.job.Action]
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		defer e.running.Store(false)

		start := time.Now()
		err := s.invoke(ctx, h, e.job.Args)
		s.metrics.RecordTiming(metrics.OpJobRun, time.Since(start))

		e.mu.Lock()
		e.runs++
		if err != nil {
			e.failures++
			e.lastErr = err.Error()
		} else {
			e.lastErr = ""
		}
		e.mu.Unlock()

		switch {
		case errors.Is(err, errPanicked):
			s.metrics.RecordJob(e.job.Action, metrics.JobPanicked)
			log.Error("job panicked", "error", err)
		case err != nil:
			s.metrics.RecordJob(e.job.Action, metrics.JobFailed)
			log.Warn("job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		default:
			s.metrics.RecordJob(e.job.Action, metrics.JobSucceeded)
			log.Debug("job completed", "duration_ms", time.Since(start).Milliseconds())
		}

		if last && ctx.Err() == nil {
			s.finish(e)
		}
	}()
}

var errPanicked = errors.New("handler panicked")

func (s *Scheduler) invoke(ctx context.Context, h Handler, args map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanicked, r)
		}
	}()
	if h == nil {
		return ErrUnknownAction
	}
	return h(ctx, args)
}

func (s *Scheduler) misfire(e *entry, last bool) {
	e.mu.Lock()
	e.misfires++
	e.mu.Unlock()
	s.metrics.RecordJob(e.job.Action, metrics.JobMisfired)
	if last {
		s.finish(e)
	}
}

// finish drops a one-shot job after its single occurrence.
func (s *Scheduler) finish(e *entry) {
	s.mu.Lock()
	if s.jobs[e.job.ID] == e {
		delete(s.jobs, e.job.ID)
	}
	s.mu.Unlock()

	if e.job.Persist && s.store != nil {
		if err := s.store.DeleteJob(context.Background(), e.job.ID); err != nil {
			slog.Warn("failed to delete persisted job", "job_id", e.job.ID, "error", err)
		}
	}
}

func (e *entry) info() JobInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return JobInfo{
		ID:        e.job.ID,
		Kind:      e.job.Kind,
		Action:    e.job.Action,
		Args:      e.job.Args,
		NextRun:   e.next,
		Every:     e.job.Every,
		Persisted: e.job.Persist,
		Running:   e.running.Load(),
		Runs:      e.runs,
		Misfires:  e.misfires,
		Failures:  e.failures,
		LastError: e.lastErr,
	}
}
