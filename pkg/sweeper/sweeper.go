package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SivaGaneshv1729/library-management-api/pkg/lending"
	"github.com/SivaGaneshv1729/library-management-api/pkg/queue"
	"github.com/SivaGaneshv1729/library-management-api/pkg/retry"
)

const (
	DefaultSchedule   = "@every 1h"
	DefaultMaxRetries = 5
	DefaultRetryDelay = time.Minute

	logMsgRunStarted   = "overdue sweep run started"
	logMsgRunFinished  = "overdue sweep run finished"
	logMsgRunFailed    = "overdue sweep run failed"
	logMsgRetryOK      = "member re-sync succeeded"
	logMsgRetryQueued  = "member re-sync scheduled"
	logMsgRetryDropped = "member re-sync abandoned"
	logMsgSkipped      = "overdue sweep skipped, previous run still active"

	logAttrMemberID = "member_id"
	logAttrAttempt  = "attempt"
	logAttrRetryAt  = "retry_at"
	logAttrError    = "error"
	logAttrRetried  = "retried"
	logAttrPending  = "pending"
	logAttrFailures = "failures"
	logAttrElapsed  = "elapsed_ms"
)

// Engine is the part of lending.Engine the sweeper drives.
type Engine interface {
	Sweep(ctx context.Context) (lending.SweepResult, error)
	SyncMember(ctx context.Context, memberID string) ([]string, error)
}

// Sweeper runs the overdue sweep on a cron schedule and re-syncs members whose
// sync failed on a later run.
type Sweeper struct {
	engine     Engine
	queue      *queue.Queue
	cron       *cron.Cron
	schedule   string
	maxRetries int
	retryDelay time.Duration
	runTimeout time.Duration
	now        func() time.Time
	logger     lending.Logger

	running sync.Mutex
}

type Option func(*Sweeper)

func WithSchedule(expr string) Option {
	return func(s *Sweeper) {
		s.schedule = expr
	}
}

// WithMaxRetries limits how many times one member is re-synced before it is
// left to the next full sweep.
func WithMaxRetries(n int) Option {
	return func(s *Sweeper) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets the delay before the first re-sync; later ones double.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Sweeper) {
		s.retryDelay = d
	}
}

// WithRunTimeout bounds a single run, zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		s.runTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func WithLogger(logger lending.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func New(engine Engine, q *queue.Queue, opts ...Option) *Sweeper {
	s := &Sweeper{
		engine:     engine,
		queue:      q,
		schedule:   DefaultSchedule,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.queue == nil {
		s.queue = queue.NewQueue()
	}
	return s
}

// Start registers the sweep with the scheduler and starts it in its own goroutine.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.scheduledRun); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) scheduledRun() {
	if !s.running.TryLock() {
		s.logInfo(logMsgSkipped)
		return
	}
	defer s.running.Unlock()

	ctx := context.Background()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	if _, err := s.run(ctx); err != nil {
		s.logError(logMsgRunFailed, logAttrError, err.Error())
	}
}

// RunOnce performs one run synchronously: due re-syncs first, then a full sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (lending.SweepResult, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.run(ctx)
}

// Pending returns the members waiting for a re-sync.
func (s *Sweeper) Pending() []*queue.RetrySync {
	return s.queue.GetAll()
}

func (s *Sweeper) run(ctx context.Context) (lending.SweepResult, error) {
	started := s.now()
	s.logInfo(logMsgRunStarted, logAttrPending, s.queue.Size())

	retried := s.drainDue(ctx)

	result, err := s.engine.Sweep(ctx)
	if err != nil {
		return result, err
	}

	for _, failure := range result.Failures {
		if _, queued := s.queue.Get(failure.MemberID); queued {
			continue
		}
		s.requeue(failure.MemberID, failure.Err, 0)
	}

	s.logInfo(logMsgRunFinished,
		logAttrRetried, retried,
		logAttrFailures, len(result.Failures),
		logAttrPending, s.queue.Size(),
		logAttrElapsed, s.now().Sub(started).Milliseconds(),
	)
	return result, nil
}

func (s *Sweeper) drainDue(ctx context.Context) int {
	due := s.queue.DequeueDue(s.now())
	for _, entry := range due {
		if ctx.Err() != nil {
			s.queue.Enqueue(entry)
			continue
		}

		_, err := s.engine.SyncMember(ctx, entry.MemberID)
		switch {
		case err == nil:
			s.logInfo(logMsgRetryOK, logAttrMemberID, entry.MemberID, logAttrAttempt, entry.RetryCount+1)
		case errors.Is(err, lending.ErrMemberNotFound):
			// member deleted since the failure, nothing left to sync
		default:
			s.requeue(entry.MemberID, err, entry.RetryCount+1)
		}
	}
	return len(due)
}

func (s *Sweeper) requeue(memberID string, cause error, attempts int) {
	entry := &queue.RetrySync{
		MemberID:   memberID,
		LastError:  cause.Error(),
		RetryCount: attempts,
		MaxRetries: s.maxRetries,
	}
	if entry.Exhausted() {
		s.queue.Remove(memberID)
		s.logError(logMsgRetryDropped, logAttrMemberID, memberID, logAttrAttempt, attempts, logAttrError, entry.LastError)
		return
	}

	entry.RetryAt = s.now().Add(retry.Backoff(s.retryDelay, attempts+1, 0))
	s.queue.Enqueue(entry)
	s.logWarn(logMsgRetryQueued, logAttrMemberID, memberID, logAttrAttempt, attempts+1, logAttrRetryAt, entry.RetryAt)
}

func (s *Sweeper) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Sweeper) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Sweeper) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
