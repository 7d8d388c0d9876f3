package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("x %s", "y").Code)
	assert.Equal(t, http.StatusConflict, Conflict("x").Code)
	assert.Equal(t, http.StatusBadRequest, BadRequest("x").Code)

	v := Validation(map[string]string{"title": "Field is required"})
	assert.Equal(t, http.StatusUnprocessableEntity, v.Code)
	assert.Equal(t, KindValidation, v.Type)
	assert.Equal(t, "Field is required", v.Fields["title"])
}

func TestStorageFailureWraps(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("saving: %w", StorageFailure(cause, "Failed to save %s", "posts"))

	assert.True(t, IsKind(err, KindStorageFailure))
	assert.False(t, IsKind(err, KindConflict))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Failed to save posts")

	ce, ok := AsCustomError(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, ce.Code)

	_, ok = AsCustomError(cause)
	assert.False(t, ok)
}
