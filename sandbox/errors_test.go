package sandbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs(t *testing.T) {
	for kind, sentinel := range sentinels {
		err := newError(kind, "message", nil)
		assert.ErrorIs(t, err, sentinel, string(kind))
		assert.Equal(t, kind, KindOf(fmt.Errorf("wrapped: %w", err)))
	}

	assert.NotErrorIs(t, newError(KindScript, "x", nil), ErrTimeout)
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("exit status 1")
	err := newError(KindSpawn, "Execution error", cause)

	assert.Equal(t, "Execution error: exit status 1", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "plain", newError(KindScript, "plain", nil).Error())
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("something")))
}

func TestValidationFailed(t *testing.T) {
	err := validationFailed(ReasonEmptyScript, "empty")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, ReasonEmptyScript, err.Reason)
	assert.ErrorIs(t, err, ErrValidation)
}
