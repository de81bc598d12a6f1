// Package scheduler runs periodic background maintenance for the quotation service.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes artifacts older than a given age and reports how many went
type Sweeper interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// RetentionConfig holds configuration for the artifact retention job
type RetentionConfig struct {
	// MaxAge is how long an exported artifact is kept
	MaxAge time.Duration

	// Interval is how often the sweep runs
	Interval time.Duration

	// Timeout bounds a single sweep
	Timeout time.Duration
}

// DefaultRetentionConfig returns default retention configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxAge:   24 * time.Hour,
		Interval: time.Hour,
		Timeout:  time.Minute,
	}
}

// Validate checks the configuration
func (c RetentionConfig) Validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("%w: max age must be positive", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// RunStats summarizes the sweeps performed so far
type RunStats struct {
	Runs     int
	Removed  int
	Failures int
	LastRun  time.Time
	LastErr  error
}

// RetentionScheduler periodically deletes exported artifacts past their retention age
type RetentionScheduler struct {
	config  RetentionConfig
	sweeper Sweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stats     RunStats
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(config RetentionConfig, sweeper Sweeper, logger *zap.Logger) (*RetentionScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sweeper == nil {
		return nil, fmt.Errorf("%w: sweeper is required", ErrInvalidConfig)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRetentionConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}, nil
}

// Start begins sweeping in the background
func (r *RetentionScheduler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.runLoop(ctx)

	r.logger.Info("Artifact retention scheduler started",
		zap.Duration("max_age", r.config.MaxAge),
		zap.Duration("interval", r.config.Interval),
	)
	return nil
}

// Stop stops the scheduler and waits for an in-flight sweep to finish
func (r *RetentionScheduler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Artifact retention scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RetentionScheduler) runLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep immediately
func (r *RetentionScheduler) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	removed, err := r.sweeper.CleanupOlderThan(ctx, r.config.MaxAge)

	r.mu.Lock()
	r.stats.Runs++
	r.stats.Removed += removed
	r.stats.LastRun = time.Now()
	r.stats.LastErr = err
	if err != nil {
		r.stats.Failures++
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("Artifact retention sweep failed", zap.Error(err))
		return removed, err
	}
	if removed > 0 {
		r.logger.Info("Expired artifacts removed", zap.Int("count", removed))
	}
	return removed, nil
}

// Stats returns a copy of the sweep statistics
func (r *RetentionScheduler) Stats() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// IsRunning reports whether the background loop is active
func (r *RetentionScheduler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunning
}
