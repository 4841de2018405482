package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTests(t *testing.T) {
	tree := Group[int]{
		Name: "outer",
		Children: []Node[int]{
			BeforeAll[int]{Fn: func(c int) (int, error) { return c, nil }},
			Test[int]{Name: "a"},
			Test[int]{Name: "b"},
			Group[int]{
				Name: "inner",
				Children: []Node[int]{
					BeforeEach[int]{Fn: func(c int) (int, error) { return c, nil }},
					Test[int]{Name: "c"},
				},
			},
		},
	}

	assert.Equal(t, 3, CountTests[int](tree))
}

func TestCountTestsIgnoresHooks(t *testing.T) {
	tree := Group[int]{
		Children: []Node[int]{
			BeforeAll[int]{},
			AfterAll[int]{},
			BeforeEach[int]{},
			AfterEach[int]{},
		},
	}

	assert.Equal(t, 0, CountTests[int](tree))
}

func TestCountTestsBareTest(t *testing.T) {
	assert.Equal(t, 1, CountTests[int](Test[int]{Name: "solo"}))
}
