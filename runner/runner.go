package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/grovekit/grove/metrics"
	"github.com/grovekit/grove/sandbox"
	"github.com/grovekit/grove/types"
)

// Config holds configuration for creating a new Runner.
type Config struct {
	MaxConcurrency int           // upper bound on one group's tests running at once; 1 runs them serially
	DefaultTimeout time.Duration // deadline for hooks and for tests without an override
	Log            log.Logger
	Events         EventSink // optional live progress sink
	LogCrashes     bool      // forward sandbox crash diagnostics to the logger
}

// Runner executes suite trees. A single Runner may execute several suites in
// sequence; a failed after_all in one suite halts every suite the same
// Runner is asked to execute afterwards, since the shared environment those
// suites depend on may have been left inconsistent.
type Runner struct {
	cfg    Config
	log    log.Logger
	events EventSink
	halted *types.AssertionFailure
}

// New creates a new Runner instance.
func New(cfg Config) (*Runner, error) {
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be at least 1, got %d", cfg.MaxConcurrency)
	}
	if cfg.DefaultTimeout <= 0 {
		return nil, fmt.Errorf("default timeout must be positive, got %v", cfg.DefaultTimeout)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Events == nil {
		cfg.Events = NewNoOpEventSink()
	}
	if cfg.MaxConcurrency > 32 {
		cfg.Log.Warn("Very high concurrency requested", "concurrency", cfg.MaxConcurrency,
			"recommendation", "consider lower values to avoid resource exhaustion")
	}

	return &Runner{cfg: cfg, log: cfg.Log, events: cfg.Events}, nil
}

// Halted reports whether a failed after_all has poisoned subsequent runs.
func (r *Runner) Halted() bool {
	return r.halted != nil
}

// ResetHalt clears the poisoned state so later suites execute normally
// again. Callers that own the external environment may reset after
// restoring it.
func (r *Runner) ResetHalt() {
	r.halted = nil
}

// Run executes one suite tree and returns its results in traversal order:
// tests in declaration order within each group, nested groups one at a time
// in declaration order, regardless of actual completion order. Every Test
// node yields exactly one result, from real execution or from a cascade.
func Run[C any](ctx context.Context, r *Runner, root types.Root[C]) ([]types.TestResult, error) {
	runID := uuid.New().String()
	start := time.Now()
	total := types.CountTests[C](root.Tree)

	ex := &execution[C]{
		runner: r,
		log:    r.log.New("run_id", runID),
		runID:  runID,
		total:  total,
	}

	ex.log.Debug("Starting suite run", "tests", total, "concurrency", r.cfg.MaxConcurrency)
	r.events.RunStarted(total)

	var results []types.TestResult
	if r.halted != nil {
		// A previously executed suite's teardown failed; nothing here may run.
		ex.log.Warn("Suite short-circuited by earlier teardown failure", "error", r.halted.Message)
		results = ex.cascadeNode(scope{}, root.Tree, *r.halted, types.TestStatusFail)
	} else {
		results = ex.executeNode(ctx, scope{}, root.Context, root.Tree)
	}

	r.events.RunFinished(ex.completed, total, results)
	ex.log.Debug("Suite run finished", "tests", total, "duration", time.Since(start))

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("suite run interrupted: %w", err)
	}
	return results, nil
}

func (r *Runner) sandboxOptions() sandbox.Options {
	return sandbox.Options{Log: r.log, LogCrashes: r.cfg.LogCrashes}
}

// emit surfaces one completed test result to the event sink. Called only
// from the scheduling goroutine, and only once all results with smaller
// indices in the current batch have been emitted.
func (ex *execution[C]) emit(result types.TestResult) {
	ex.completed++
	metrics.RecordTest(ex.runID, result.FullPath(), result.Status)
	ex.runner.events.TestFinished(ex.completed, ex.total, result)
}
