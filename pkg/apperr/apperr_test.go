package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("request not found")))
	assert.Equal(t, KindInvalidState, KindOf(InvalidState("already decided")))
	assert.Equal(t, KindValidation, KindOf(Validation("amount must not be negative")))
	assert.Equal(t, KindForbidden, KindOf(Forbidden("not yours")))
	assert.Equal(t, KindPersistence, KindOf(Persistence(errors.New("boom"), "write failed")))

	// Unclassified errors fall through to persistence
	assert.Equal(t, KindPersistence, KindOf(errors.New("plain")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("gone"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindValidation))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Persistence(cause, "failed to load request")
	assert.Equal(t, "failed to load request: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
