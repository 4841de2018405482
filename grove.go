// Package grove is the service wrapper around the scheduling core: it runs
// every registered suite in sequence, prints the operator-facing summary,
// records metrics, and exits with a code reflecting the run outcome.
package grove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/grovekit/grove/exitcodes"
	"github.com/grovekit/grove/metrics"
	"github.com/grovekit/grove/registry"
	"github.com/grovekit/grove/runner"
	"github.com/grovekit/grove/types"
)

// Service executes the registered suites, once or on an interval. Suites run
// strictly one after another: a failed after_all in one suite suppresses
// every suite scheduled after it.
type Service struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    *runner.Runner
	scheduler RunScheduler
	summary   *RunSummary
	out       io.Writer

	running atomic.Bool

	shutdownCallback func(error) // signals application shutdown in run-once mode
}

// New creates the service. Manifest values, when present, override the
// flag-derived concurrency and timeout.
func New(ctx context.Context, config *Config, version string, reg *registry.Registry, shutdownCallback func(error)) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		return nil, errors.New("registry is required")
	}

	maxConcurrency := config.MaxConcurrency
	defaultTimeout := config.DefaultTimeout
	if m := reg.Manifest(); m != nil {
		if m.MaxConcurrency > 0 {
			maxConcurrency = m.MaxConcurrency
		}
		if m.DefaultTimeout > 0 {
			defaultTimeout = time.Duration(m.DefaultTimeout)
		}
	}

	var events runner.EventSink
	if config.ShowProgress {
		events = runner.NewLogEventSink(config.Log)
	}

	testRunner, err := runner.New(runner.Config{
		MaxConcurrency: maxConcurrency,
		DefaultTimeout: defaultTimeout,
		Log:            config.Log,
		Events:         events,
		LogCrashes:     config.LogCrashes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	config.Log.Debug("Creating service",
		"manifest", config.ManifestFile,
		"concurrency", maxConcurrency,
		"defaultTimeout", defaultTimeout,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	return &Service{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		runner:           testRunner,
		out:              os.Stdout,
		shutdownCallback: shutdownCallback,
	}, nil
}

// SetOutput redirects the rendered tables, primarily for tests.
func (s *Service) SetOutput(w io.Writer) {
	s.out = w
}

// Start runs the registered suites. In run-once mode it returns after a
// single run, reporting test failures through a typed error; in continuous
// mode it hands the run loop to the scheduler and returns.
func (s *Service) Start(ctx context.Context) error {
	s.ctx = ctx
	s.running.Store(true)

	if s.config.RunOnce {
		s.config.Log.Info("Starting grove in run-once mode", "version", s.version)
		err := s.runSuites()
		s.running.Store(false)
		if err != nil {
			metrics.RecordError("runtime")
			return &RuntimeError{Err: err}
		}
		if s.summary != nil && s.summary.Status == types.TestStatusFail {
			err := &TestFailureError{Msg: fmt.Sprintf("%d of %d tests did not pass",
				s.summary.Failed+s.summary.TimedOut+s.summary.SetupFailed, s.summary.Total)}
			if s.shutdownCallback != nil {
				s.shutdownCallback(err)
			}
			return err
		}
		if s.shutdownCallback != nil {
			s.shutdownCallback(nil)
		}
		return nil
	}

	s.config.Log.Info("Starting grove in continuous mode",
		"version", s.version, "interval", s.config.RunInterval)

	s.scheduler = NewDefaultRunScheduler(s.config.RunInterval, s.config.Log)
	s.scheduler.RegisterCallback(s.runSuites)
	return s.scheduler.Start(ctx)
}

// Stop stops the service and its scheduler.
func (s *Service) Stop(ctx context.Context) error {
	s.running.Store(false)
	if s.scheduler != nil {
		return s.scheduler.Stop()
	}
	return nil
}

// Stopped returns true if the service is stopped.
func (s *Service) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the scheduler's goroutines have terminated.
func (s *Service) WaitForShutdown(ctx context.Context) error {
	if s.scheduler != nil {
		return s.scheduler.WaitForShutdown(ctx)
	}
	return nil
}

// Summary returns the aggregate outcome of the most recent run, or nil when
// no run has completed yet.
func (s *Service) Summary() *RunSummary {
	return s.summary
}

// ExitCode maps the most recent run outcome onto the process exit codes.
func (s *Service) ExitCode() int {
	if s.summary == nil {
		return exitcodes.RuntimeErr
	}
	if s.summary.Status == types.TestStatusFail {
		return exitcodes.TestFailure
	}
	return exitcodes.Success
}

// runSuites executes every selected suite in registration order and renders
// the per-suite tables plus the aggregate summary.
func (s *Service) runSuites() error {
	start := time.Now()
	suites := s.registry.Suites()
	if len(suites) == 0 {
		return errors.New("no suites selected")
	}

	serviceRunID := uuid.New().String()
	s.config.Log.Info("Running suites", "suites", len(suites), "service_run_id", serviceRunID)

	var all []types.TestResult
	for _, suite := range suites {
		s.config.Log.Info("Running suite", "suite", suite.Name(), "tests", suite.TestCount())
		results, err := suite.Execute(s.ctx, s.runner)
		all = append(all, results...)
		if err != nil {
			return fmt.Errorf("running suite %s: %w", suite.Name(), err)
		}
		writeResultsTable(s.out, suite.Name(), results)
	}

	if s.runner.Halted() {
		s.config.Log.Error("A teardown failure halted the run; later suites were suppressed")
	}

	summary := summarize(all, time.Since(start))
	s.summary = &summary
	metrics.RecordRun(serviceRunID, summary.Status, summary.Duration)
	writeSummary(s.out, summary)

	return nil
}
