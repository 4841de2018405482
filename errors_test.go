package grove

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	testFailure := &TestFailureError{Msg: "2 of 5 tests did not pass"}
	runtimeErr := &RuntimeError{Err: errors.New("manifest unreadable")}

	assert.True(t, IsTestFailureError(testFailure))
	assert.False(t, IsTestFailureError(runtimeErr))
	assert.True(t, IsRuntimeError(runtimeErr))
	assert.False(t, IsRuntimeError(testFailure))
	assert.False(t, IsRuntimeError(nil))

	assert.Equal(t, "2 of 5 tests did not pass", testFailure.Error())
	assert.Equal(t, "manifest unreadable", runtimeErr.Error())
}

func TestRuntimeErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := fmt.Errorf("loading state: %w", &RuntimeError{Err: cause})

	assert.True(t, IsRuntimeError(wrapped))
	assert.ErrorIs(t, wrapped, cause)
}
