package types

import (
	"strings"
	"time"
)

// TestStatus represents the possible states of a test execution
type TestStatus string

const (
	TestStatusPass        TestStatus = "pass"
	TestStatusFail        TestStatus = "fail"
	TestStatusSkip        TestStatus = "skip"
	TestStatusTimeout     TestStatus = "timeout"
	TestStatusSetupFailed TestStatus = "setup_failed"
)

// IsFailure returns true for every status that should fail a run.
// Skips are not failures.
func (s TestStatus) IsFailure() bool {
	switch s {
	case TestStatusFail, TestStatusTimeout, TestStatusSetupFailed:
		return true
	default:
		return false
	}
}

// Operator tags identifying where a failure originated.
const (
	OperatorBeforeAll  = "before_all"
	OperatorBeforeEach = "before_each"
	OperatorAfterEach  = "after_each"
	OperatorAfterAll   = "after_all"
	OperatorCrash      = "crash"
	OperatorTimeout    = "timeout"
	OperatorError      = "error"
)

// AssertionFailure is a structured explanation attached to a non-passing
// result. Operator identifies the failure source; Payload optionally carries
// matcher-specific detail.
type AssertionFailure struct {
	Operator string
	Message  string
	Payload  string
}

// AssertionStatus is the outcome a test body reports through its
// AssertionResult.
type AssertionStatus string

const (
	AssertionOk      AssertionStatus = "ok"
	AssertionFailed  AssertionStatus = "failed"
	AssertionSkipped AssertionStatus = "skipped"
)

// AssertionResult is the value a test body returns on the success path.
// Failure is set only when Status is AssertionFailed.
type AssertionResult struct {
	Status  AssertionStatus
	Failure *AssertionFailure
}

// AssertOk reports a passing assertion outcome.
func AssertOk() AssertionResult {
	return AssertionResult{Status: AssertionOk}
}

// AssertFailed reports a failed assertion with its explanation.
func AssertFailed(failure AssertionFailure) AssertionResult {
	return AssertionResult{Status: AssertionFailed, Failure: &failure}
}

// AssertSkipped reports an explicit skip.
func AssertSkipped() AssertionResult {
	return AssertionResult{Status: AssertionSkipped}
}

// TestResult captures the outcome of a single test node. Exactly one is
// produced per Test node attempted, or synthesized for nodes suppressed by a
// setup/teardown cascade. Immutable once returned.
type TestResult struct {
	Name     string
	FullName []string // scope path from the root group down to the test name
	Status   TestStatus
	Duration time.Duration
	Tags     []string
	Failures []AssertionFailure
	Kind     TestKind
}

// FullPath returns the full scope path as a single string.
func (tr TestResult) FullPath() string {
	return strings.Join(tr.FullName, "/")
}
