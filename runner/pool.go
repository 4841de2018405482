package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovekit/grove/types"
)

// testWork is one unit of work handed to a pool worker. The index is the
// test's position in the group's declaration order and stays attached to the
// result so completions can be reordered.
type testWork[C any] struct {
	index int
	test  types.Test[C]
}

// testWorkResult is a completed unit reported back by a worker.
type testWorkResult struct {
	index  int
	result types.TestResult
}

// runPool executes one group's test batch with bounded concurrency and
// returns results in declaration order. Completions arriving out of order
// are buffered and surfaced to the event sink only once every result with a
// smaller index has been emitted. Per-test deadlines are enforced inside the
// sandbox, so the pool only multiplexes completions.
func (ex *execution[C]) runPool(ctx context.Context, sc scope, groupCtx C,
	beforeEach []func(C) (C, error), afterEach []func(C) error,
	tests []types.Test[C]) []types.TestResult {

	if len(tests) == 0 {
		return nil
	}

	concurrency := ex.runner.cfg.MaxConcurrency
	if concurrency <= 1 || len(tests) == 1 {
		return ex.runSerial(ctx, sc, groupCtx, beforeEach, afterEach, tests)
	}
	if concurrency > len(tests) {
		concurrency = len(tests)
	}

	// Conservative buffering: enough to keep workers busy without holding
	// the whole batch in channel memory.
	bufferSize := min(concurrency*2, 100)
	workChan := make(chan testWork[C], bufferSize)
	resultChan := make(chan testWorkResult, bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go ex.worker(ctx, &wg, sc, groupCtx, beforeEach, afterEach, workChan, resultChan)
	}

	go func() {
		defer close(workChan)
		for i, test := range tests {
			select {
			case workChan <- testWork[C]{index: i, test: test}:
			case <-ctx.Done():
				ex.log.Debug("Context cancelled while dispatching tests")
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]types.TestResult, len(tests))
	seen := make([]bool, len(tests))
	buffered := make(map[int]types.TestResult)
	nextEmit := 0

	for wr := range resultChan {
		results[wr.index] = wr.result
		seen[wr.index] = true
		buffered[wr.index] = wr.result
		for {
			pending, ok := buffered[nextEmit]
			if !ok {
				break
			}
			delete(buffered, nextEmit)
			ex.emit(pending)
			nextEmit++
		}
	}

	// Workers bail out on context cancellation without reporting; every test
	// still owes the caller exactly one result.
	for i := range results {
		if !seen[i] {
			results[i] = ex.cancelledResult(sc, tests[i], ctx.Err())
			ex.emit(results[i])
		}
	}

	return results
}

// runSerial is the sequential fallback: tests run one at a time on the
// scheduling goroutine, in declaration order, with semantically identical
// output to the parallel path.
func (ex *execution[C]) runSerial(ctx context.Context, sc scope, groupCtx C,
	beforeEach []func(C) (C, error), afterEach []func(C) error,
	tests []types.Test[C]) []types.TestResult {

	results := make([]types.TestResult, 0, len(tests))
	for _, test := range tests {
		var result types.TestResult
		if ctx.Err() != nil {
			result = ex.cancelledResult(sc, test, ctx.Err())
		} else {
			result = ex.safeRunTestCase(sc, groupCtx, beforeEach, afterEach, test)
		}
		ex.emit(result)
		results = append(results, result)
	}
	return results
}

// worker consumes test work until the work channel closes or the context is
// cancelled.
func (ex *execution[C]) worker(ctx context.Context, wg *sync.WaitGroup, sc scope, groupCtx C,
	beforeEach []func(C) (C, error), afterEach []func(C) error,
	workChan <-chan testWork[C], resultChan chan<- testWorkResult) {

	defer wg.Done()

	for {
		select {
		case work, ok := <-workChan:
			if !ok {
				return
			}
			result := ex.safeRunTestCase(sc, groupCtx, beforeEach, afterEach, work.test)
			select {
			case resultChan <- testWorkResult{index: work.index, result: result}:
			case <-ctx.Done():
				ex.log.Debug("Context cancelled while sending result", "test", work.test.Name)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// safeRunTestCase guards against crashes outside the sandbox boundary (the
// pipeline's own bookkeeping); a worker must never die without producing a
// result.
func (ex *execution[C]) safeRunTestCase(sc scope, groupCtx C,
	beforeEach []func(C) (C, error), afterEach []func(C) error,
	test types.Test[C]) (result types.TestResult) {

	defer func() {
		if rec := recover(); rec != nil {
			ex.log.Error("Panic outside sandbox boundary", "test", test.Name, "error", rec)
			result = types.TestResult{
				Name:     test.Name,
				FullName: sc.fullName(test.Name),
				Status:   types.TestStatusFail,
				Tags:     sc.testTags(test.Tags),
				Failures: []types.AssertionFailure{{
					Operator: types.OperatorCrash,
					Message:  fmt.Sprintf("worker crashed: %v", rec),
				}},
				Kind: kindOrDefault(test.Kind),
			}
		}
	}()

	return ex.runTestCase(sc, groupCtx, beforeEach, afterEach, test)
}

func (ex *execution[C]) cancelledResult(sc scope, test types.Test[C], cause error) types.TestResult {
	message := "run cancelled before the test could execute"
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return types.TestResult{
		Name:     test.Name,
		FullName: sc.fullName(test.Name),
		Status:   types.TestStatusFail,
		Tags:     sc.testTags(test.Tags),
		Failures: []types.AssertionFailure{{Operator: types.OperatorError, Message: message}},
		Kind:     kindOrDefault(test.Kind),
	}
}
