package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

const (
	defaultInterval = 5 * time.Minute
	defaultTimeout  = 30 * time.Second
)

var (
	// ErrRefreshInProgress is returned when a cycle is requested while one is running.
	ErrRefreshInProgress = errors.New("refresh already in progress")
	// ErrStopped is returned when a cycle is requested after Stop.
	ErrStopped = errors.New("scheduler stopped")
)

// State is the scheduler's position in its two-state cycle.
type State int32

const (
	StateIdle State = iota
	StateFetching
)

func (s State) String() string {
	if s == StateFetching {
		return "fetching"
	}
	return "idle"
}

// Refresher runs one fetch+normalize cycle.
type Refresher interface {
	FetchAndStore(ctx context.Context) (weather.Report, error)
}

// Status is what consumers see: the current report (if any), whether a cycle
// is running, and the error of the last cycle.
type Status struct {
	State       State
	Report      *weather.Report
	Err         error
	LastAttempt time.Time
	LastSuccess time.Time
}

// Loading reports whether a cycle is in flight.
func (s Status) Loading() bool {
	return s.State == StateFetching
}

// Scheduler refreshes the current report on start-up and every interval after.
// At most one cycle runs at a time; a failed cycle keeps the previous report.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger

	state atomic.Int32

	mu          sync.RWMutex
	report      *weather.Report
	lastErr     error
	lastAttempt time.Time
	lastSuccess time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. interval and timeout fall back to 5 minutes and
// 30 seconds when not positive.
func New(service Refresher, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	s.scheduler.SingletonModeAll()

	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		s.logger.Debug("scheduler: running refresh job")
		err := s.Refresh(s.ctx)
		switch {
		case err == nil:
			s.logger.Info("scheduler: refresh completed")
		case errors.Is(err, ErrRefreshInProgress), errors.Is(err, ErrStopped):
			s.logger.Debug("scheduler: refresh skipped", zap.Error(err))
		default:
			s.logger.Warn("scheduler: refresh failed; keeping previous report", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: started", zap.Duration("interval", s.interval))
	return nil
}

// Refresh runs one cycle now. It moves Idle to Fetching and back, and fails
// with ErrRefreshInProgress if a cycle is already running.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if s.ctx.Err() != nil {
		return ErrStopped
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateFetching)) {
		return ErrRefreshInProgress
	}
	defer s.state.Store(int32(StateIdle))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	started := time.Now().UTC()
	report, err := s.service.FetchAndStore(ctx)

	if s.ctx.Err() != nil {
		// Stopped mid-cycle: the outcome is discarded.
		return ErrStopped
	}

	s.mu.Lock()
	s.lastAttempt = started
	if err != nil {
		s.lastErr = err
	} else {
		s.report = &report
		s.lastErr = nil
		s.lastSuccess = time.Now().UTC()
	}
	s.mu.Unlock()

	return err
}

// Status returns a consistent view of the scheduler: the report and error
// always belong to the same completed cycles.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:       State(s.state.Load()),
		Err:         s.lastErr,
		LastAttempt: s.lastAttempt,
		LastSuccess: s.lastSuccess,
	}
	if s.report != nil {
		r := *s.report
		st.Report = &r
	}
	return st
}

// Stop stops the scheduler and cancels any cycle in flight.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
