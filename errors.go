package grove

import "errors"

// TestFailureError indicates that the run completed but at least one test
// did not pass. Maps to exit code 1.
type TestFailureError struct {
	Msg string
}

func (e *TestFailureError) Error() string {
	return e.Msg
}

// RuntimeError indicates that the harness itself failed before or during a
// run. Maps to exit code 2.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return e.Err.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsTestFailureError reports whether err is a test-failure error.
func IsTestFailureError(err error) bool {
	var target *TestFailureError
	return errors.As(err, &target)
}

// IsRuntimeError reports whether err is a harness runtime error.
func IsRuntimeError(err error) bool {
	var target *RuntimeError
	return errors.As(err, &target)
}
