package grove

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunScheduler is responsible for scheduling periodic suite runs.
type RunScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(func() error)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultRunScheduler implements the RunScheduler interface. It only handles
// periodic runs; the service executes run-once mode directly so it can type
// the resulting error.
type DefaultRunScheduler struct {
	interval time.Duration
	logger   log.Logger
	callback func() error

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewDefaultRunScheduler creates a new DefaultRunScheduler.
func NewDefaultRunScheduler(interval time.Duration, logger log.Logger) *DefaultRunScheduler {
	return &DefaultRunScheduler{
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the callback invoked for each scheduled run.
func (s *DefaultRunScheduler) RegisterCallback(callback func() error) {
	s.callback = callback
}

// Start starts the scheduler: the first run executes synchronously and
// subsequent runs fire on the interval.
func (s *DefaultRunScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	s.logger.Info("Starting scheduler", "interval", s.interval)

	if err := s.callback(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Debug("Starting periodic run goroutine", "interval", s.interval)

		for {
			select {
			case <-time.After(s.interval):
				if !s.running.Load() {
					s.logger.Debug("Scheduler stopped, exiting periodic runner")
					return
				}

				s.logger.Info("Running scheduled suites")
				if err := s.callback(); err != nil {
					s.logger.Error("Error running scheduled suites", "error", err)
				}

			case <-s.done:
				s.logger.Debug("Done signal received, stopping periodic runner")
				return

			case <-ctx.Done():
				s.logger.Debug("Context canceled, stopping periodic runner")
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler.
func (s *DefaultRunScheduler) Stop() error {
	if !s.running.Load() {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return nil
	}

	s.running.Store(false)
	s.logger.Debug("Sending done signal to goroutines")
	close(s.done)

	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *DefaultRunScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated or the context
// expires.
func (s *DefaultRunScheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Debug("All scheduler goroutines terminated")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for scheduler goroutines", "error", ctx.Err())
		return ctx.Err()
	}
}
