// Package scheduler runs configured API dispatches on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"

	"github.com/note89/sitehooks/internal/config"
	"github.com/note89/sitehooks/internal/runner"
	"github.com/note89/sitehooks/pkg/schema"
)

// Dispatcher is the runner surface the scheduler needs.
type Dispatcher interface {
	RunAsync(ctx context.Context, api string, args, defaultResult any, transform runner.ArgTransform) ([]any, error)
}

// Job is one configured schedule and its run state.
type Job struct {
	ID         string
	Spec       string
	API        string
	Args       any
	Retries    int
	NextRunAt  time.Time
	LastRunAt  time.Time
	LastStatus string
	Attempts   int

	schedule cron.Schedule
}

// Scheduler polls its job table and dispatches jobs that are due.
type Scheduler struct {
	runner    Dispatcher
	parser    cron.Parser
	logger    *slog.Logger
	interval  time.Duration
	retry     time.Duration
	now       func() time.Time
	decode    ArgsDecoder
	transform func(api string) runner.ArgTransform

	jobsMu sync.Mutex
	jobs   []*Job

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// ArgsDecoder turns a job's configured args into the value dispatched. It
// runs before every attempt.
type ArgsDecoder func(api string, args any) (any, error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the polling interval. Defaults to 30s.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRetryInterval sets the initial backoff between retries. Defaults to 1s.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.retry = d
		}
	}
}

// WithArgsDecoder sets how configured args are turned into dispatch args.
// By default they are dispatched as configured.
func WithArgsDecoder(fn ArgsDecoder) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.decode = fn
		}
	}
}

// WithTransformFor sets how the arg transform of a job's API is chosen.
// By default jobs dispatch without one.
func WithTransformFor(fn func(api string) runner.ArgTransform) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.transform = fn
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler parses every schedule and computes its first run time.
// An unparsable cron spec is a CONFIG_ERROR.
func NewScheduler(schedules []config.Schedule, d Dispatcher, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		runner:   d,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		interval: 30 * time.Second,
		retry:    time.Second,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now()
	seen := make(map[string]struct{}, len(schedules))
	for i, sc := range schedules {
		id := sc.Name
		if id == "" {
			id = fmt.Sprintf("schedule-%d", i)
		}
		if _, dup := seen[id]; dup {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "duplicate schedule %q", id)
		}
		seen[id] = struct{}{}

		parsed, err := s.parser.Parse(sc.Spec)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "schedule %q: parse cron expression %q", id, sc.Spec).WithCause(err)
		}
		s.jobs = append(s.jobs, &Job{
			ID:        id,
			Spec:      sc.Spec,
			API:       sc.API,
			Args:      sc.Args,
			Retries:   sc.Retries,
			NextRunAt: parsed.Next(now),
			schedule:  parsed,
		})
	}
	return s, nil
}

// Jobs returns a snapshot of the job table.
func (s *Scheduler) Jobs() []Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

// Running reports whether the polling loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)), slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick dispatches every job whose next run time has passed and returns how
// many ran. Jobs already executing are skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	s.jobsMu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if !job.NextRunAt.After(now) {
			due = append(due, job)
		}
	}
	s.jobsMu.Unlock()

	ran := 0
	for _, job := range due {
		if ctx.Err() != nil {
			break
		}
		if !s.tryAcquire(job.ID) {
			continue
		}
		s.runJob(ctx, job, now)
		s.releaseJob(job.ID)
		ran++
	}
	return ran
}

// runJob dispatches the job's API, retrying with exponential backoff, and
// advances its next run time.
func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) {
	log := s.logger.With(slog.String("job_id", job.ID), slog.String("api", job.API))
	log.Info("running scheduled job")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry
	b.MaxElapsedTime = 0

	var transform runner.ArgTransform
	if s.transform != nil {
		transform = s.transform(job.API)
	}

	attempts := 0
	op := func() error {
		attempts++
		args := job.Args
		if s.decode != nil {
			decoded, err := s.decode(job.API, job.Args)
			if err != nil {
				return backoff.Permanent(err)
			}
			args = decoded
		}
		_, err := s.runner.RunAsync(ctx, job.API, args, nil, transform)
		if err != nil && attempts <= job.Retries {
			log.Warn("scheduled dispatch failed, retrying",
				slog.Int("attempt", attempts),
				slog.String("error", err.Error()),
			)
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(job.Retries)), ctx))

	status := "success"
	if err != nil {
		status = "error"
		log.Error("scheduled job execution failed",
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
	}

	s.jobsMu.Lock()
	job.LastRunAt = now
	job.LastStatus = status
	job.Attempts = attempts
	job.NextRunAt = job.schedule.Next(now)
	s.jobsMu.Unlock()
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
