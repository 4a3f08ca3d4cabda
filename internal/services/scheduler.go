package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"moneywise/internal/log"
)

// SchedulerConfig holds configuration for the background scheduler
type SchedulerConfig struct {
	// RecurringInterval is how often recurring templates are checked (default: 1h)
	RecurringInterval time.Duration

	// RecurringSchedule is a standard five-field cron expression. When set it
	// replaces RecurringInterval, e.g. "5 0 * * *" for shortly after midnight.
	RecurringSchedule string

	// CleanupInterval is how often expired sessions are purged (default: 6h)
	CleanupInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		RecurringInterval: time.Hour,
		CleanupInterval:   6 * time.Hour,
	}
}

// Scheduler runs the recurring processor and session cleanup on tickers.
type Scheduler struct {
	recurring *RecurringProcessor
	sessions  *SessionService
	config    SchedulerConfig
	logger    *log.Logger
	now       func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler accepts a nil sessions service to skip cleanup.
func NewScheduler(recurring *RecurringProcessor, sessions *SessionService, config SchedulerConfig, logger *log.Logger) *Scheduler {
	if config.RecurringInterval <= 0 {
		config.RecurringInterval = DefaultSchedulerConfig().RecurringInterval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultSchedulerConfig().CleanupInterval
	}
	return &Scheduler{
		recurring: recurring,
		sessions:  sessions,
		config:    config,
		logger:    componentLogger(logger, log.ComponentWorker),
		now:       time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running or
// if the cron schedule does not parse.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.RecurringSchedule != "" {
		if _, err := cron.ParseStandard(s.config.RecurringSchedule); err != nil {
			return fmt.Errorf("invalid recurring schedule %q: %w", s.config.RecurringSchedule, err)
		}
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Scheduler started",
		"recurring_interval", s.config.RecurringInterval,
		"recurring_schedule", s.config.RecurringSchedule,
		"cleanup_interval", s.config.CleanupInterval)
	return nil
}

// Stop gracefully stops the scheduler and waits for the current run.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Scheduler stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce processes recurring templates and purges sessions a single time.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.processRecurring(ctx)
	s.cleanupSessions(ctx)
}

// runLoop exits on Stop or when ctx is cancelled. Either way the scheduler
// may be started again.
func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(doneCh)
	}()

	// A nil channel never fires, so cron-scheduled runs leave the ticker case idle.
	var recurringTick <-chan time.Time
	if s.config.RecurringSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.config.RecurringSchedule, func() { s.processRecurring(ctx) }); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule recurring processing", log.FieldError, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	} else {
		recurringTicker := time.NewTicker(s.config.RecurringInterval)
		defer recurringTicker.Stop()
		recurringTick = recurringTicker.C
	}

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	s.RunOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-recurringTick:
			s.processRecurring(ctx)
		case <-cleanupTicker.C:
			s.cleanupSessions(ctx)
		}
	}
}

func (s *Scheduler) processRecurring(ctx context.Context) {
	if s.recurring == nil {
		return
	}
	if _, err := s.recurring.ProcessDue(ctx, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "Recurring processing failed", log.FieldError, err)
	}
}

func (s *Scheduler) cleanupSessions(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.PurgeExpired(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Session cleanup failed", log.FieldError, err)
	}
}
