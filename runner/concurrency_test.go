package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovekit/grove/types"
)

// TestTestsOverlapUnderConcurrency proves two tests genuinely run at the
// same time: each body blocks until both have started. Under serial
// execution the barrier would never release and the sandbox deadline would
// fail the run instead.
func TestTestsOverlapUnderConcurrency(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)

	blockingTest := func(name string) types.Test[int] {
		return types.Test[int]{Name: name, Run: func(int) (types.AssertionResult, error) {
			barrier.Done()
			barrier.Wait()
			return types.AssertOk(), nil
		}}
	}

	r := newTestRunner(t, 2)
	results, err := Run(context.Background(), r, rootOf(group("g",
		blockingTest("left"),
		blockingTest("right"),
	)))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, types.TestStatusPass, results[0].Status)
	assert.Equal(t, types.TestStatusPass, results[1].Status)
}

func TestOutOfOrderCompletionEmittedInDeclarationOrder(t *testing.T) {
	sink := &recordingSink{}
	r := newRecordingRunner(t, 2, sink)

	results, err := Run(context.Background(), r, rootOf(group("g",
		types.Test[int]{Name: "slow", Run: func(int) (types.AssertionResult, error) {
			time.Sleep(80 * time.Millisecond)
			return types.AssertOk(), nil
		}},
		passTest("fast"),
	)))
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The fast test finishes first, yet both the result slice and the live
	// event stream follow declaration order.
	assert.Equal(t, "slow", results[0].Name)
	assert.Equal(t, "fast", results[1].Name)
	assert.Equal(t, []string{"slow", "fast"}, sink.order)
	assert.Equal(t, []int{1, 2}, sink.seq)
}

func TestEventStreamCounters(t *testing.T) {
	sink := &recordingSink{}
	r := newRecordingRunner(t, 4, sink)

	tree := group("root",
		passTest("a"),
		group("nested",
			passTest("b"),
			passTest("c"),
		),
	)

	results, err := Run(context.Background(), r, rootOf(tree))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, sink.starts)
	assert.Equal(t, 3, sink.total)
	assert.Equal(t, []int{1, 2, 3}, sink.seq, "completion counter is 1-based and strictly monotonic")
	assert.True(t, sink.finished)
	assert.Equal(t, 3, sink.completed)
	assert.Len(t, sink.results, 3)
}

func TestCancelledContextShortCircuitsRemainingTests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(t, 1)
	results, err := Run(ctx, r, rootOf(group("g",
		passTest("one"),
		passTest("two"),
	)))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.Equal(t, types.TestStatusFail, result.Status)
		require.Len(t, result.Failures, 1)
		assert.Equal(t, types.OperatorError, result.Failures[0].Operator)
	}
}
