package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	assert.Equal(t, http.StatusConflict, MetadataFor(CodeConflict).HTTPStatus)
	assert.Equal(t, http.StatusConflict, MetadataFor(CodeInsufficient).HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, MetadataFor(CodeInvalidTransition).HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, MetadataFor(CodeUnauthorized).HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, MetadataFor(CodeUnavailable).HTTPStatus)
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeUnavailable, cause, "catalog reserve")

	require.NotNil(t, err)
	assert.Equal(t, CodeUnavailable, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE: catalog reserve", err.Error())
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	inner := New(CodeInsufficient, "sku A short by 2")
	wrapped := fmt.Errorf("reserve line: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInsufficient, typed.Code())
	assert.True(t, IsCode(wrapped, CodeInsufficient))
	assert.False(t, IsCode(wrapped, CodeConflict))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain")))
}
