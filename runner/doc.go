// Package runner is the scheduling core: it walks a suite tree, runs
// before_all/after_all chains sequentially, executes each group's test batch
// through a bounded worker pool, and reorders completions back into
// declaration order. Every hook invocation and test body runs inside the
// sandbox, so one test's crash or overrun never takes down its siblings.
package runner
