package runner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/grovekit/grove/sandbox"
	"github.com/grovekit/grove/types"
)

// AfterAllSentinel is the name carried by the synthetic result that reports
// a failed after_all chain. It never collides with a real test result: real
// results always carry their declared node name.
const AfterAllSentinel = "<after_all>"

// scope tracks the group path and the tags accumulated from the root down
// to the node being executed.
type scope struct {
	path []string
	tags []string
}

func (s scope) enter(name string, tags []string) scope {
	next := scope{path: s.path, tags: s.tags}
	if name != "" {
		next.path = append(append([]string{}, s.path...), name)
	}
	if len(tags) > 0 {
		next.tags = append(append([]string{}, s.tags...), tags...)
	}
	return next
}

// fullName returns the scope path extended with a test name.
func (s scope) fullName(name string) []string {
	return append(append([]string{}, s.path...), name)
}

// testTags returns the inherited tags extended with a test's own.
func (s scope) testTags(tags []string) []string {
	return append(append([]string{}, s.tags...), tags...)
}

// execution carries the per-run state threaded through the recursive
// scheduler. All fields are touched only from the scheduling goroutine;
// worker goroutines report back through channels.
type execution[C any] struct {
	runner    *Runner
	log       log.Logger
	runID     string
	total     int
	completed int
}

func (ex *execution[C]) executeNode(ctx context.Context, sc scope, groupCtx C, node types.Node[C]) []types.TestResult {
	switch n := node.(type) {
	case types.Group[C]:
		return ex.executeGroup(ctx, sc, groupCtx, nil, nil, n)
	case types.Test[C]:
		// A bare test at the root behaves as if wrapped in an unnamed group.
		return ex.executeGroup(ctx, sc, groupCtx, nil, nil, types.Group[C]{Children: []types.Node[C]{n}})
	default:
		// A hook with no enclosing group has nothing to attach to.
		ex.log.Warn("Ignoring hook node outside any group")
		return nil
	}
}

// executeGroup runs one group to completion: the before_all chain, the
// group's own test batch through the worker pool, nested groups one at a
// time, then the after_all chain. Teardown always attempts to run, even
// after a failed setup.
func (ex *execution[C]) executeGroup(ctx context.Context, sc scope, groupCtx C,
	inheritedBefore []func(C) (C, error), inheritedAfter []func(C) error,
	group types.Group[C]) []types.TestResult {

	sc = sc.enter(group.Name, group.Tags)
	hooks, tests, groups := Collect(group.Children)

	if ex.runner.halted != nil {
		// An earlier scope's teardown failed; this subtree is suppressed
		// wholesale, hooks included.
		return ex.cascadeGroupBody(sc, tests, groups, *ex.runner.halted, types.TestStatusFail)
	}

	var results []types.TestResult

	groupCtx, setupFailure := ex.runBeforeAll(groupCtx, hooks.BeforeAll)
	if setupFailure != nil {
		ex.log.Warn("before_all failed, suppressing subtree",
			"group", group.Name, "error", setupFailure.Message)
		results = ex.cascadeGroupBody(sc, tests, groups, *setupFailure, types.TestStatusSetupFailed)
	} else {
		// before_each runs outer-to-inner, after_each inner-to-outer.
		beforeEach := mergeBeforeEach(inheritedBefore, hooks.BeforeEach)
		afterEach := mergeAfterEach(hooks.AfterEach, inheritedAfter)

		results = append(results, ex.runPool(ctx, sc, groupCtx, beforeEach, afterEach, tests)...)
		for _, child := range groups {
			results = append(results, ex.executeGroup(ctx, sc, groupCtx, beforeEach, afterEach, child)...)
		}
	}

	if failure := ex.runAfterAll(groupCtx, hooks.AfterAll); failure != nil {
		ex.log.Error("after_all failed, halting subsequent scopes",
			"group", group.Name, "error", failure.Message)
		results = append(results, ex.afterAllResult(sc, *failure))
		if ex.runner.halted == nil {
			ex.runner.halted = failure
		}
	}
	return results
}

// runBeforeAll runs the group's before_all chain sequentially. Each
// successful hook replaces the context; the first failure stops the chain
// and the last good context is returned alongside the failure.
func (ex *execution[C]) runBeforeAll(groupCtx C, hooks []func(C) (C, error)) (C, *types.AssertionFailure) {
	timeout := ex.runner.cfg.DefaultTimeout
	for _, hook := range hooks {
		res := sandbox.Run(ex.runner.sandboxOptions(), timeout, func() contextStep[C] {
			next, err := hook(groupCtx)
			return contextStep[C]{ctx: next, err: err}
		})
		switch res.Outcome {
		case sandbox.OutcomeTimedOut:
			return groupCtx, &types.AssertionFailure{
				Operator: types.OperatorTimeout,
				Message:  fmt.Sprintf("before_all hook timed out after %v", timeout),
			}
		case sandbox.OutcomeCrashed:
			return groupCtx, &types.AssertionFailure{
				Operator: types.OperatorCrash,
				Message:  fmt.Sprintf("before_all hook crashed: %s", res.CrashReason),
			}
		}
		if res.Value.err != nil {
			return groupCtx, &types.AssertionFailure{
				Operator: types.OperatorBeforeAll,
				Message:  res.Value.err.Error(),
			}
		}
		groupCtx = res.Value.ctx
	}
	return groupCtx, nil
}

// runAfterAll runs the group's after_all chain sequentially against the
// group context and reports the first failure, if any.
func (ex *execution[C]) runAfterAll(groupCtx C, hooks []func(C) error) *types.AssertionFailure {
	timeout := ex.runner.cfg.DefaultTimeout
	for _, hook := range hooks {
		res := sandbox.Run(ex.runner.sandboxOptions(), timeout, func() error {
			return hook(groupCtx)
		})
		switch res.Outcome {
		case sandbox.OutcomeTimedOut:
			return &types.AssertionFailure{
				Operator: types.OperatorTimeout,
				Message:  fmt.Sprintf("after_all hook timed out after %v", timeout),
			}
		case sandbox.OutcomeCrashed:
			return &types.AssertionFailure{
				Operator: types.OperatorCrash,
				Message:  fmt.Sprintf("after_all hook crashed: %s", res.CrashReason),
			}
		}
		if res.Value != nil {
			return &types.AssertionFailure{
				Operator: types.OperatorAfterAll,
				Message:  res.Value.Error(),
			}
		}
	}
	return nil
}

func (ex *execution[C]) afterAllResult(sc scope, failure types.AssertionFailure) types.TestResult {
	return types.TestResult{
		Name:     AfterAllSentinel,
		FullName: sc.fullName(AfterAllSentinel),
		Status:   types.TestStatusFail,
		Tags:     sc.testTags(nil),
		Failures: []types.AssertionFailure{failure},
		Kind:     types.KindTest,
	}
}

// cascadeGroupBody synthesizes results for a group body whose execution is
// suppressed by a failed setup or teardown. Result order matches what real
// execution would have produced: tests first, then nested groups.
func (ex *execution[C]) cascadeGroupBody(sc scope, tests []types.Test[C], groups []types.Group[C],
	failure types.AssertionFailure, status types.TestStatus) []types.TestResult {

	var results []types.TestResult
	for _, test := range tests {
		results = append(results, ex.cascadeTest(sc, test, failure, status))
	}
	for _, child := range groups {
		results = append(results, ex.cascadeNode(sc, child, failure, status)...)
	}
	return results
}

func (ex *execution[C]) cascadeNode(sc scope, node types.Node[C],
	failure types.AssertionFailure, status types.TestStatus) []types.TestResult {

	switch n := node.(type) {
	case types.Test[C]:
		return []types.TestResult{ex.cascadeTest(sc, n, failure, status)}
	case types.Group[C]:
		child := sc.enter(n.Name, n.Tags)
		_, tests, groups := Collect(n.Children)
		return ex.cascadeGroupBody(child, tests, groups, failure, status)
	default:
		return nil
	}
}

func (ex *execution[C]) cascadeTest(sc scope, test types.Test[C],
	failure types.AssertionFailure, status types.TestStatus) types.TestResult {

	result := types.TestResult{
		Name:     test.Name,
		FullName: sc.fullName(test.Name),
		Status:   status,
		Tags:     sc.testTags(test.Tags),
		Failures: []types.AssertionFailure{failure},
		Kind:     kindOrDefault(test.Kind),
	}
	ex.emit(result)
	return result
}

func kindOrDefault(kind types.TestKind) types.TestKind {
	if kind == "" {
		return types.KindTest
	}
	return kind
}

func mergeBeforeEach[C any](inherited, own []func(C) (C, error)) []func(C) (C, error) {
	merged := make([]func(C) (C, error), 0, len(inherited)+len(own))
	merged = append(merged, inherited...)
	return append(merged, own...)
}

func mergeAfterEach[C any](own, inherited []func(C) error) []func(C) error {
	merged := make([]func(C) error, 0, len(own)+len(inherited))
	merged = append(merged, own...)
	return append(merged, inherited...)
}
