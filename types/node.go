package types

import "time"

// TestKind distinguishes runnable tests from ones that are declared but not
// yet implemented.
type TestKind string

const (
	KindTest TestKind = "test"
	KindTodo TestKind = "todo" // reported as skipped, never executed
)

// Root binds a suite tree to the initial context value shared by every hook
// and test in the tree. Immutable once built; the engine only reads it.
type Root[C any] struct {
	Context C
	Tree    Node[C]
}

// Node is a single node of the suite tree. The set of implementations is
// closed: Group, Test, BeforeAll, BeforeEach, AfterEach and AfterAll.
// Hook nodes attach to their enclosing group regardless of where they appear
// among its children.
type Node[C any] interface {
	node()
}

// Group is a named scope. It may contain tests, hooks and nested groups in
// any order. Tags accumulate additively from the root down to each test.
type Group[C any] struct {
	Name     string
	Tags     []string
	Children []Node[C]
}

// Test is one runnable test. Timeout overrides the engine default when
// non-zero. The body returns the assertion outcome, or an error for a
// runtime failure that is not an assertion.
type Test[C any] struct {
	Name    string
	Tags    []string
	Kind    TestKind
	Run     func(C) (AssertionResult, error)
	Timeout time.Duration
}

// BeforeAll transforms the group context once, before any of the group's
// tests or nested groups run. The returned value replaces the context for
// the rest of the group.
type BeforeAll[C any] struct {
	Fn func(C) (C, error)
}

// BeforeEach transforms the context immediately before each test in scope.
type BeforeEach[C any] struct {
	Fn func(C) (C, error)
}

// AfterEach runs immediately after each test in scope, regardless of the
// test's outcome.
type AfterEach[C any] struct {
	Fn func(C) error
}

// AfterAll runs once after all of the group's tests and nested groups.
type AfterAll[C any] struct {
	Fn func(C) error
}

func (Group[C]) node()      {}
func (Test[C]) node()       {}
func (BeforeAll[C]) node()  {}
func (BeforeEach[C]) node() {}
func (AfterEach[C]) node()  {}
func (AfterAll[C]) node()   {}

// CountTests returns the number of Test nodes in the subtree rooted at node.
// Hook nodes never contribute.
func CountTests[C any](node Node[C]) int {
	switch n := node.(type) {
	case Test[C]:
		return 1
	case Group[C]:
		total := 0
		for _, child := range n.Children {
			total += CountTests[C](child)
		}
		return total
	default:
		return 0
	}
}
