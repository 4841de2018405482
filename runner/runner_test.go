package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovekit/grove/types"
)

func discardLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func newTestRunner(t *testing.T, concurrency int) *Runner {
	t.Helper()
	r, err := New(Config{
		MaxConcurrency: concurrency,
		DefaultTimeout: 2 * time.Second,
		Log:            discardLogger(),
	})
	require.NoError(t, err)
	return r
}

func newRecordingRunner(t *testing.T, concurrency int, sink EventSink) *Runner {
	t.Helper()
	r, err := New(Config{
		MaxConcurrency: concurrency,
		DefaultTimeout: 2 * time.Second,
		Log:            discardLogger(),
		Events:         sink,
	})
	require.NoError(t, err)
	return r
}

// recordingSink captures the live event stream for assertions. The engine
// calls every sink method from the scheduling goroutine, so no locking is
// needed.
type recordingSink struct {
	total     int
	starts    int
	order     []string
	statuses  []types.TestStatus
	seq       []int
	finished  bool
	completed int
	results   []types.TestResult
}

func (s *recordingSink) RunStarted(total int) {
	s.starts++
	s.total = total
}

func (s *recordingSink) TestFinished(completed, total int, result types.TestResult) {
	s.seq = append(s.seq, completed)
	s.order = append(s.order, result.Name)
	s.statuses = append(s.statuses, result.Status)
}

func (s *recordingSink) RunFinished(completed, total int, results []types.TestResult) {
	s.finished = true
	s.completed = completed
	s.results = results
}

func passTest(name string) types.Test[int] {
	return types.Test[int]{Name: name, Run: func(int) (types.AssertionResult, error) {
		return types.AssertOk(), nil
	}}
}

func group(name string, children ...types.Node[int]) types.Group[int] {
	return types.Group[int]{Name: name, Children: children}
}

func rootOf(node types.Node[int]) types.Root[int] {
	return types.Root[int]{Tree: node}
}

func statusesOf(results []types.TestResult) []types.TestStatus {
	statuses := make([]types.TestStatus, len(results))
	for i, r := range results {
		statuses[i] = r.Status
	}
	return statuses
}

func TestAllPassingResultsInDeclarationOrder(t *testing.T) {
	for _, concurrency := range []int{1, 2, 8} {
		t.Run(fmt.Sprintf("concurrency_%d", concurrency), func(t *testing.T) {
			const n = 6
			children := make([]types.Node[int], n)
			for i := 0; i < n; i++ {
				children[i] = passTest(fmt.Sprintf("test-%d", i))
			}

			r := newTestRunner(t, concurrency)
			results, err := Run(context.Background(), r, rootOf(types.Group[int]{Name: "g", Children: children}))
			require.NoError(t, err)
			require.Len(t, results, n)

			for i, result := range results {
				assert.Equal(t, fmt.Sprintf("test-%d", i), result.Name)
				assert.Equal(t, types.TestStatusPass, result.Status)
			}
		})
	}
}

func TestDeterministicStatusSequence(t *testing.T) {
	build := func() types.Root[int] {
		return rootOf(group("mixed",
			passTest("passes"),
			types.Test[int]{Name: "fails", Run: func(int) (types.AssertionResult, error) {
				return types.AssertFailed(types.AssertionFailure{Operator: "equal", Message: "nope"}), nil
			}},
			types.Test[int]{Name: "skips", Run: func(int) (types.AssertionResult, error) {
				return types.AssertSkipped(), nil
			}},
			passTest("passes-again"),
		))
	}

	first, err := Run(context.Background(), newTestRunner(t, 4), build())
	require.NoError(t, err)
	second, err := Run(context.Background(), newTestRunner(t, 4), build())
	require.NoError(t, err)

	assert.Equal(t, statusesOf(first), statusesOf(second))
	assert.Equal(t, []types.TestStatus{
		types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip, types.TestStatusPass,
	}, statusesOf(first))
}

func TestErrorReturnBecomesFailure(t *testing.T) {
	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(group("g",
		types.Test[int]{Name: "broken", Run: func(int) (types.AssertionResult, error) {
			return types.AssertionResult{}, errors.New("connection refused")
		}},
	)))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.TestStatusFail, results[0].Status)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, types.OperatorError, results[0].Failures[0].Operator)
	assert.Contains(t, results[0].Failures[0].Message, "connection refused")
}

func TestAssertionFailurePreserved(t *testing.T) {
	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(group("g",
		types.Test[int]{Name: "mismatch", Run: func(int) (types.AssertionResult, error) {
			return types.AssertFailed(types.AssertionFailure{
				Operator: "equal",
				Message:  "expected 1, got 2",
				Payload:  "diff",
			}), nil
		}},
	)))
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, "equal", results[0].Failures[0].Operator)
	assert.Equal(t, "diff", results[0].Failures[0].Payload)
}

func TestTodoNeverRuns(t *testing.T) {
	var bodyRuns atomic.Int32
	r := newTestRunner(t, 4)
	results, err := Run(context.Background(), r, rootOf(group("g",
		types.Test[int]{Name: "someday", Kind: types.KindTodo, Run: func(int) (types.AssertionResult, error) {
			bodyRuns.Add(1)
			return types.AssertOk(), nil
		}},
	)))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.TestStatusSkip, results[0].Status)
	assert.Equal(t, types.KindTodo, results[0].Kind)
	assert.Equal(t, int32(0), bodyRuns.Load())
}

func TestTimeoutDoesNotStallGroup(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(group("g",
		passTest("quick-one"),
		types.Test[int]{Name: "hangs", Timeout: 30 * time.Millisecond, Run: func(int) (types.AssertionResult, error) {
			<-release
			return types.AssertOk(), nil
		}},
		passTest("quick-two"),
	)))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []types.TestStatus{
		types.TestStatusPass, types.TestStatusTimeout, types.TestStatusPass,
	}, statusesOf(results))
	require.Len(t, results[1].Failures, 1)
	assert.Equal(t, types.OperatorTimeout, results[1].Failures[0].Operator)
}

func TestCrashIsolation(t *testing.T) {
	r := newTestRunner(t, 4)
	results, err := Run(context.Background(), r, rootOf(group("g",
		passTest("survivor-one"),
		types.Test[int]{Name: "explodes", Run: func(int) (types.AssertionResult, error) {
			panic("index out of range")
		}},
		passTest("survivor-two"),
	)))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, types.TestStatusPass, results[0].Status)
	assert.Equal(t, types.TestStatusFail, results[1].Status)
	assert.Equal(t, types.TestStatusPass, results[2].Status)

	require.Len(t, results[1].Failures, 1)
	assert.Equal(t, types.OperatorCrash, results[1].Failures[0].Operator)
	assert.Contains(t, results[1].Failures[0].Message, "index out of range")
}

func TestHookNestingContextThreading(t *testing.T) {
	var observed atomic.Int64

	inner := types.Group[int]{Name: "inner", Children: []types.Node[int]{
		types.BeforeEach[int]{Fn: func(c int) (int, error) { return c + 1, nil }},
		types.Test[int]{Name: "observes", Run: func(c int) (types.AssertionResult, error) {
			observed.Store(int64(c))
			return types.AssertOk(), nil
		}},
	}}
	outer := types.Group[int]{Name: "outer", Children: []types.Node[int]{
		types.BeforeEach[int]{Fn: func(c int) (int, error) { return c + 10, nil }},
		inner,
	}}

	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, types.Root[int]{Context: 0, Tree: outer})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.TestStatusPass, results[0].Status)
	assert.Equal(t, int64(11), observed.Load(), "outer before_each (+10) must run before inner (+1)")
}

func TestBeforeEachFailureSkipsBodyButRunsAfterEach(t *testing.T) {
	var bodyRuns, afterRuns atomic.Int32

	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(group("g",
		types.BeforeEach[int]{Fn: func(c int) (int, error) {
			return c, errors.New("fixture missing")
		}},
		types.AfterEach[int]{Fn: func(int) error {
			afterRuns.Add(1)
			return nil
		}},
		types.Test[int]{Name: "never-runs", Run: func(int) (types.AssertionResult, error) {
			bodyRuns.Add(1)
			return types.AssertOk(), nil
		}},
	)))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.TestStatusSetupFailed, results[0].Status)
	assert.Equal(t, int32(0), bodyRuns.Load())
	assert.Equal(t, int32(1), afterRuns.Load(), "after_each runs even when setup failed")
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, types.OperatorBeforeEach, results[0].Failures[0].Operator)
}

func TestAfterEachFailureFailsPassingTest(t *testing.T) {
	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(group("g",
		types.AfterEach[int]{Fn: func(int) error {
			return errors.New("leaked connection")
		}},
		passTest("body-passes"),
	)))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.TestStatusFail, results[0].Status)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, types.OperatorAfterEach, results[0].Failures[0].Operator)
}

func TestTagsAccumulateRootToLeaf(t *testing.T) {
	tree := types.Group[int]{Name: "outer", Tags: []string{"slow"}, Children: []types.Node[int]{
		types.Group[int]{Name: "inner", Tags: []string{"net"}, Children: []types.Node[int]{
			types.Test[int]{Name: "tagged", Tags: []string{"flaky"}, Run: func(int) (types.AssertionResult, error) {
				return types.AssertOk(), nil
			}},
		}},
	}}

	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(tree))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, []string{"slow", "net", "flaky"}, results[0].Tags)
	assert.Equal(t, []string{"outer", "inner", "tagged"}, results[0].FullName)
}

func TestBareTestAtRoot(t *testing.T) {
	r := newTestRunner(t, 1)
	results, err := Run(context.Background(), r, rootOf(passTest("solo")))
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.TestStatusPass, results[0].Status)
	assert.Equal(t, []string{"solo"}, results[0].FullName)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{MaxConcurrency: 0, DefaultTimeout: time.Second})
	require.Error(t, err)

	_, err = New(Config{MaxConcurrency: 1, DefaultTimeout: 0})
	require.Error(t, err)

	r, err := New(Config{MaxConcurrency: 1, DefaultTimeout: time.Second, Log: discardLogger()})
	require.NoError(t, err)
	assert.False(t, r.Halted())
}
