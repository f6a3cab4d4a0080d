package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorNormalisesUnknownErrors(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Nil(t, FromError(nil))
}

func TestCloneKeepsCodeAndOverridesMessage(t *testing.T) {
	clone := Clone(ErrValidation, "bad request body")
	assert.Equal(t, ErrValidation.Code, clone.Code)
	assert.Equal(t, "bad request body", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestIsCodeWalksWrappedChain(t *testing.T) {
	inner := Wrap(fmt.Errorf("too many connections"), ErrRateLimited.Code, ErrRateLimited.Status, "append rows")
	outer := fmt.Errorf("save timetable: %w", Wrap(inner, ErrInternal.Code, ErrInternal.Status, "persist"))

	assert.True(t, IsCode(outer, ErrRateLimited.Code))
	assert.True(t, IsCode(outer, ErrInternal.Code))
	assert.False(t, IsCode(outer, ErrConflict.Code))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrInternal.Code))
}
