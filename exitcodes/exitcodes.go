// Package exitcodes defines the standard exit codes used by grove binaries.
package exitcodes

// Exit code constants:
//
// * Success (0): every selected test passed or was skipped
// * TestFailure (1): at least one test failed, timed out, or lost its setup
// * RuntimeErr (2): the harness itself failed (bad configuration, panics)
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
