package grove

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

func TestSchedulerRequiresCallback(t *testing.T) {
	s := NewDefaultRunScheduler(time.Second, discardLogger())
	require.Error(t, s.Start(context.Background()))
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	var runs atomic.Int32

	s := NewDefaultRunScheduler(20*time.Millisecond, discardLogger())
	s.RegisterCallback(func() error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int32(1), runs.Load(), "first run happens synchronously on start")
	assert.False(t, s.Stopped())

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())
	require.NoError(t, s.WaitForShutdown(context.Background()))

	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, runs.Load(), "no runs fire after stop")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewDefaultRunScheduler(time.Hour, discardLogger())
	s.RegisterCallback(func() error { return nil })

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

func TestSchedulerContextCancelStopsPeriodicRuns(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewDefaultRunScheduler(10*time.Millisecond, discardLogger())
	s.RegisterCallback(func() error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.Start(ctx))
	cancel()

	require.NoError(t, s.WaitForShutdown(context.Background()))
	assert.True(t, s.Stopped())
}
