package runner

import (
	"fmt"
	"time"

	"github.com/grovekit/grove/sandbox"
	"github.com/grovekit/grove/types"
)

// contextStep carries one before hook's output across the sandbox boundary.
type contextStep[C any] struct {
	ctx C
	err error
}

// bodyOutcome carries a test body's return values across the sandbox
// boundary.
type bodyOutcome struct {
	assertion types.AssertionResult
	err       error
}

// runTestCase executes the full per-test pipeline: the merged before_each
// chain, the test body inside the sandbox, then the merged after_each chain.
// The after_each chain runs no matter how the earlier steps ended, against
// the context as transformed by however much of the before_each chain
// succeeded.
func (ex *execution[C]) runTestCase(sc scope, groupCtx C,
	beforeEach []func(C) (C, error), afterEach []func(C) error,
	test types.Test[C]) types.TestResult {

	start := time.Now()
	result := types.TestResult{
		Name:     test.Name,
		FullName: sc.fullName(test.Name),
		Tags:     sc.testTags(test.Tags),
		Kind:     kindOrDefault(test.Kind),
	}

	if result.Kind == types.KindTodo {
		result.Status = types.TestStatusSkip
		return result
	}

	hookTimeout := ex.runner.cfg.DefaultTimeout
	testCtx := groupCtx
	setupOK := true

	for _, hook := range beforeEach {
		res := sandbox.Run(ex.runner.sandboxOptions(), hookTimeout, func() contextStep[C] {
			next, err := hook(testCtx)
			return contextStep[C]{ctx: next, err: err}
		})
		var failure *types.AssertionFailure
		switch res.Outcome {
		case sandbox.OutcomeTimedOut:
			failure = &types.AssertionFailure{
				Operator: types.OperatorTimeout,
				Message:  fmt.Sprintf("before_each hook timed out after %v", hookTimeout),
			}
		case sandbox.OutcomeCrashed:
			failure = &types.AssertionFailure{
				Operator: types.OperatorCrash,
				Message:  fmt.Sprintf("before_each hook crashed: %s", res.CrashReason),
			}
		default:
			if res.Value.err != nil {
				failure = &types.AssertionFailure{
					Operator: types.OperatorBeforeEach,
					Message:  res.Value.err.Error(),
				}
			}
		}
		if failure != nil {
			result.Status = types.TestStatusSetupFailed
			result.Failures = append(result.Failures, *failure)
			setupOK = false
			break
		}
		testCtx = res.Value.ctx
	}

	if setupOK {
		timeout := test.Timeout
		if timeout <= 0 {
			timeout = ex.runner.cfg.DefaultTimeout
		}
		body := sandbox.Run(ex.runner.sandboxOptions(), timeout, func() bodyOutcome {
			assertion, err := test.Run(testCtx)
			return bodyOutcome{assertion: assertion, err: err}
		})
		switch body.Outcome {
		case sandbox.OutcomeTimedOut:
			result.Status = types.TestStatusTimeout
			result.Failures = append(result.Failures, types.AssertionFailure{
				Operator: types.OperatorTimeout,
				Message:  fmt.Sprintf("test timed out after %v", timeout),
			})
		case sandbox.OutcomeCrashed:
			result.Status = types.TestStatusFail
			result.Failures = append(result.Failures, types.AssertionFailure{
				Operator: types.OperatorCrash,
				Message:  body.CrashReason,
			})
		default:
			switch {
			case body.Value.err != nil:
				result.Status = types.TestStatusFail
				result.Failures = append(result.Failures, types.AssertionFailure{
					Operator: types.OperatorError,
					Message:  body.Value.err.Error(),
				})
			case body.Value.assertion.Status == types.AssertionFailed:
				result.Status = types.TestStatusFail
				if body.Value.assertion.Failure != nil {
					result.Failures = append(result.Failures, *body.Value.assertion.Failure)
				} else {
					result.Failures = append(result.Failures, types.AssertionFailure{
						Operator: types.OperatorError,
						Message:  "assertion failed",
					})
				}
			case body.Value.assertion.Status == types.AssertionSkipped:
				result.Status = types.TestStatusSkip
			default:
				result.Status = types.TestStatusPass
			}
		}
	}

	for _, hook := range afterEach {
		res := sandbox.Run(ex.runner.sandboxOptions(), hookTimeout, func() error {
			return hook(testCtx)
		})
		var failure *types.AssertionFailure
		switch res.Outcome {
		case sandbox.OutcomeTimedOut:
			failure = &types.AssertionFailure{
				Operator: types.OperatorTimeout,
				Message:  fmt.Sprintf("after_each hook timed out after %v", hookTimeout),
			}
		case sandbox.OutcomeCrashed:
			failure = &types.AssertionFailure{
				Operator: types.OperatorCrash,
				Message:  fmt.Sprintf("after_each hook crashed: %s", res.CrashReason),
			}
		default:
			if res.Value != nil {
				failure = &types.AssertionFailure{
					Operator: types.OperatorAfterEach,
					Message:  res.Value.Error(),
				}
			}
		}
		if failure != nil {
			// A teardown failure fails the test even when the body passed.
			result.Failures = append(result.Failures, *failure)
			result.Status = types.TestStatusFail
		}
	}

	result.Duration = time.Since(start)
	return result
}
