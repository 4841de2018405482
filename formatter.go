package grove

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/grovekit/grove/types"
)

// RunSummary aggregates the statuses of every result across the suites of
// one service run.
type RunSummary struct {
	Total       int
	Passed      int
	Failed      int
	Skipped     int
	TimedOut    int
	SetupFailed int
	Duration    time.Duration
	Status      types.TestStatus
}

func summarize(results []types.TestResult, duration time.Duration) RunSummary {
	s := RunSummary{Duration: duration}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case types.TestStatusPass:
			s.Passed++
		case types.TestStatusFail:
			s.Failed++
		case types.TestStatusSkip:
			s.Skipped++
		case types.TestStatusTimeout:
			s.TimedOut++
		case types.TestStatusSetupFailed:
			s.SetupFailed++
		}
	}
	switch {
	case s.Total == 0 || s.Total == s.Skipped:
		s.Status = types.TestStatusSkip
	case s.Failed+s.TimedOut+s.SetupFailed > 0:
		s.Status = types.TestStatusFail
	default:
		s.Status = types.TestStatusPass
	}
	return s
}

// formatDuration formats the duration to seconds with 1 decimal place.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func statusColors(status types.TestStatus) text.Colors {
	switch status {
	case types.TestStatusPass:
		return text.Colors{text.FgGreen}
	case types.TestStatusSkip:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed}
	}
}

// writeResultsTable renders one suite's results in traversal order.
func writeResultsTable(w io.Writer, suiteName string, results []types.TestResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Suite: %s", suiteName))
	t.AppendHeader(table.Row{"Test", "Status", "Duration", "Failure"})

	for _, r := range results {
		failure := ""
		if len(r.Failures) > 0 {
			failure = fmt.Sprintf("[%s] %s", r.Failures[0].Operator, r.Failures[0].Message)
			if extra := len(r.Failures) - 1; extra > 0 {
				failure += fmt.Sprintf(" (+%d more)", extra)
			}
		}
		t.AppendRow(table.Row{
			r.FullPath(),
			statusColors(r.Status).Sprint(string(r.Status)),
			formatDuration(r.Duration),
			failure,
		})
	}

	t.Render()
}

// writeSummary renders the aggregate counts for a whole service run.
func writeSummary(w io.Writer, s RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Run Results (%s)", formatDuration(s.Duration)))
	t.AppendHeader(table.Row{"Status", "Total", "Passed", "Failed", "Timed Out", "Setup Failed", "Skipped"})
	t.AppendRow(table.Row{
		statusColors(s.Status).Sprint(string(s.Status)),
		s.Total, s.Passed, s.Failed, s.TimedOut, s.SetupFailed, s.Skipped,
	})
	t.Render()
}
