package runner

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/grovekit/grove/types"
)

// EventSink receives the live event stream for a run. TestFinished is
// invoked strictly in declaration order; completed is 1-based, increases
// monotonically and reaches total exactly once per run. The synthetic
// after_all sentinel result appears in RunFinished's result list but does
// not consume a completion slot.
type EventSink interface {
	RunStarted(total int)
	TestFinished(completed, total int, result types.TestResult)
	RunFinished(completed, total int, results []types.TestResult)
}

// noOpEventSink is the default sink when the caller provides none.
type noOpEventSink struct{}

// NewNoOpEventSink creates an event sink that does nothing.
func NewNoOpEventSink() EventSink {
	return &noOpEventSink{}
}

func (n *noOpEventSink) RunStarted(total int)                                       {}
func (n *noOpEventSink) TestFinished(completed, total int, result types.TestResult) {}
func (n *noOpEventSink) RunFinished(completed, total int, results []types.TestResult) {
}

// logEventSink forwards run progress to the structured logger.
type logEventSink struct {
	log log.Logger
}

// NewLogEventSink creates an event sink that logs every completion.
func NewLogEventSink(logger log.Logger) EventSink {
	return &logEventSink{log: logger}
}

func (s *logEventSink) RunStarted(total int) {
	s.log.Info("Run started", "total", total)
}

func (s *logEventSink) TestFinished(completed, total int, result types.TestResult) {
	s.log.Info("Test finished",
		"test", result.FullPath(),
		"status", result.Status,
		"duration", result.Duration,
		"completed", completed,
		"total", total)
}

func (s *logEventSink) RunFinished(completed, total int, results []types.TestResult) {
	s.log.Info("Run finished", "completed", completed, "total", total)
}
