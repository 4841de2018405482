package runner

import "github.com/grovekit/grove/types"

// GroupHooks holds a group's hooks partitioned by kind, each list in
// declaration order.
type GroupHooks[C any] struct {
	BeforeAll  []func(C) (C, error)
	BeforeEach []func(C) (C, error)
	AfterEach  []func(C) error
	AfterAll   []func(C) error
}

// Collect partitions a group's children into hooks, tests and nested groups
// in a single pass. Hooks apply to the enclosing group no matter where they
// appear among its children; relative order is preserved within each
// returned list. Pure function of the input.
func Collect[C any](children []types.Node[C]) (GroupHooks[C], []types.Test[C], []types.Group[C]) {
	var hooks GroupHooks[C]
	var tests []types.Test[C]
	var groups []types.Group[C]

	for _, child := range children {
		switch n := child.(type) {
		case types.Test[C]:
			tests = append(tests, n)
		case types.Group[C]:
			groups = append(groups, n)
		case types.BeforeAll[C]:
			hooks.BeforeAll = append(hooks.BeforeAll, n.Fn)
		case types.BeforeEach[C]:
			hooks.BeforeEach = append(hooks.BeforeEach, n.Fn)
		case types.AfterEach[C]:
			hooks.AfterEach = append(hooks.AfterEach, n.Fn)
		case types.AfterAll[C]:
			hooks.AfterAll = append(hooks.AfterAll, n.Fn)
		}
	}
	return hooks, tests, groups
}
