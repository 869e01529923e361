package syncqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("syncqueue: closed")

const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultBackoffFactor  = 2.0
	defaultAttemptTimeout = 10 * time.Second
)

// Job is one remote call mirroring a local change.
type Job struct {
	EntityID  string
	Operation string
	Run       func(ctx context.Context) error
	// OnDone receives the final outcome on the worker goroutine.
	OnDone func(Result)
}

// Result is the final outcome of a Job.
type Result struct {
	EntityID  string
	Operation string
	Attempts  int
	Err       error
}

// Config tunes retry, timeout and rate limiting.
type Config struct {
	// MaxRetries counts attempts after the first. Zero selects the default; negative disables retries.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration
	// RatePerSecond caps remote calls; zero or negative disables the limit.
	RatePerSecond float64
	// Retryable decides whether a failed attempt is retried. Nil retries every error.
	Retryable func(error) bool
	Logger    *zap.Logger
}

// Queue runs jobs one at a time in enqueue order on a single worker.
type Queue struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.Mutex
	pending  []Job
	inFlight int
	idle     chan struct{}
	closed   bool
	wake     chan struct{}
	done     chan struct{}
	started  bool
}

// New returns a stopped queue; call Start to begin processing.
func New(cfg Config) *Queue {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = defaultBackoffFactor
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		idle:    idle,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the worker. It stops when ctx is cancelled; unprocessed jobs are dropped.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		q.run(ctx)
	}()
}

// Done is closed once the worker has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Enqueue appends job without waiting for it to run.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, job)
	q.inFlight++
	if q.inFlight == 1 {
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting jobs. Jobs already queued still run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Len reports queued plus running jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Flush blocks until every job enqueued so far has finished or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context) {
	for {
		job, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		result := q.process(ctx, job)
		if job.OnDone != nil {
			job.OnDone(result)
		}
		q.finish()
		if ctx.Err() != nil {
			return
		}
	}
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending[0] = Job{}
	q.pending = q.pending[1:]
	return job, true
}

func (q *Queue) finish() {
	q.mu.Lock()
	q.inFlight--
	if q.inFlight == 0 {
		close(q.idle)
	}
	q.mu.Unlock()
}

func (q *Queue) process(ctx context.Context, job Job) Result {
	result := Result{EntityID: job.EntityID, Operation: job.Operation}
	delay := q.cfg.InitialBackoff

	for {
		if err := q.limiter.Wait(ctx); err != nil {
			result.Err = err
			return result
		}
		result.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.AttemptTimeout)
		err := job.Run(attemptCtx)
		cancel()
		if err == nil {
			result.Err = nil
			return result
		}
		result.Err = err

		q.logger.Warn("remote sync attempt failed",
			zap.String("entity_id", job.EntityID),
			zap.String("operation", job.Operation),
			zap.Int("attempt", result.Attempts),
			zap.Error(err))

		if result.Attempts > q.cfg.MaxRetries || !q.retryable(err) {
			return result
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * q.cfg.BackoffFactor)
		if delay > q.cfg.MaxBackoff {
			delay = q.cfg.MaxBackoff
		}
	}
}

func (q *Queue) retryable(err error) bool {
	if q.cfg.Retryable == nil {
		return true
	}
	return q.cfg.Retryable(err)
}
