package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/YKarmar/jobsync/internal/logger"
	"github.com/YKarmar/jobsync/internal/syncer"
)

var (
	ErrInvalidConfig       = errors.New("scheduler: invalid config")
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
)

// Runner executes one sync pass for a mailbox
type Runner interface {
	Run(ctx context.Context, mb syncer.Mailbox) (*syncer.Summary, error)
}

type Config struct {
	// Interval between periodic runs
	Interval time.Duration
	// MaxHistory is how many run records are kept in memory
	MaxHistory int
}

func DefaultConfig() Config {
	return Config{
		Interval:   15 * time.Minute,
		MaxHistory: 50,
	}
}

func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxHistory < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// RunRecord is the result of one scheduled run
type RunRecord struct {
	Trigger string
	At      time.Time
	Summary *syncer.Summary
	Err     error
}

// Scheduler runs a mailbox sync immediately on start, then on every interval
// and whenever Trigger is called. A mailbox whose credentials were rejected is
// paused until the next manual Trigger.
type Scheduler struct {
	config  Config
	runner  Runner
	mailbox syncer.Mailbox
	logger  *zap.Logger

	// OnRun, if set, is called after every run from the scheduler goroutine
	OnRun func(RunRecord)

	trigger   chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
	paused    bool

	historyMu sync.RWMutex
	history   []RunRecord
}

func New(config Config, runner Runner, mb syncer.Mailbox, l *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config:  config,
		runner:  runner,
		mailbox: mb,
		logger:  logger.OrNop(l).With(zap.String("mailbox_id", mb.ID)),
		trigger: make(chan struct{}, 1),
	}, nil
}

// Start launches the scheduling loop; calling it twice is a no-op
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)

	s.logger.Info("sync scheduler started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Info("sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Trigger requests a run as soon as the loop is free. Requests made while a
// run is pending collapse into one.
func (s *Scheduler) Trigger() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	s.paused = false
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.isPaused() {
				s.logger.Debug("skipping periodic sync, mailbox needs reauthorization")
				continue
			}
			s.runOnce(ctx, "interval")
		case <-s.trigger:
			s.runOnce(ctx, "manual")
		}
	}
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	summary, err := s.runner.Run(ctx, s.mailbox)
	record := RunRecord{Trigger: trigger, At: time.Now(), Summary: summary, Err: err}

	switch {
	case err == nil:
	case errors.Is(err, syncer.ErrSyncInProgress):
		s.logger.Info("sync already in progress, skipping", zap.String("trigger", trigger))
	case errors.Is(err, syncer.ErrReauthRequired):
		s.mu.Lock()
		s.paused = true
		s.mu.Unlock()
		s.logger.Error("mailbox needs reauthorization, periodic sync paused", zap.String("trigger", trigger), zap.Error(err))
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.logger.Debug("sync canceled by shutdown", zap.String("trigger", trigger))
	default:
		s.logger.Error("sync run failed", zap.String("trigger", trigger), zap.Error(err))
	}

	s.addToHistory(record)
	if s.OnRun != nil {
		s.OnRun(record)
	}
}

func (s *Scheduler) addToHistory(r RunRecord) {
	if s.config.MaxHistory == 0 {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, r)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[len(s.history)-s.config.MaxHistory:]
	}
}

// History returns the retained run records, oldest first
func (s *Scheduler) History() []RunRecord {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	out := make([]RunRecord, len(s.history))
	copy(out, s.history)
	return out
}
