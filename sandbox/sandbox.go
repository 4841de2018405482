// Package sandbox runs a single function call on its own goroutine with a
// deadline and panic containment. It is the isolation boundary around every
// hook invocation and test body: a crash inside the call never propagates to
// the scheduler, and a call that overruns its deadline is reported as timed
// out.
//
// Go cannot forcibly kill a goroutine. A timed-out call keeps running in the
// background until it returns on its own; its result is discarded. Callers
// must treat timed-out work as abandoned, not terminated.
package sandbox

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Outcome classifies how a sandboxed call ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCrashed   Outcome = "crashed"
)

// Result carries the outcome of one sandboxed call. Value is meaningful only
// when Outcome is OutcomeCompleted; CrashReason only when OutcomeCrashed.
type Result[T any] struct {
	Outcome     Outcome
	Value       T
	CrashReason string
}

// Options configures crash diagnostics. The return contract is unaffected.
type Options struct {
	Log        log.Logger
	LogCrashes bool // when set, recovered panics are logged with their stack
}

// Run executes fn on a fresh goroutine and waits up to timeout for it to
// finish. One attempt per call; no retries.
func Run[T any](opts Options, timeout time.Duration, fn func() T) Result[T] {
	done := make(chan T, 1)
	crashed := make(chan string, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				reason := fmt.Sprintf("%v", rec)
				if opts.LogCrashes && opts.Log != nil {
					opts.Log.Debug("Sandboxed call crashed", "reason", reason, "stack", string(debug.Stack()))
				}
				crashed <- reason
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case value := <-done:
		return Result[T]{Outcome: OutcomeCompleted, Value: value}
	case reason := <-crashed:
		return Result[T]{Outcome: OutcomeCrashed, CrashReason: reason}
	case <-timer.C:
		return Result[T]{Outcome: OutcomeTimedOut}
	}
}
