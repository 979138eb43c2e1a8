package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", data["status"])
}

func TestWriteErrorMapsCodeToStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeNotFound), envelope.Error.Code)
	assert.Equal(t, "order not found", envelope.Error.Message)
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	cause := errors.New("pq: connection refused")
	WriteError(context.Background(), nil, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "query users"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	assert.Equal(t, "internal server error", envelope.Error.Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWriteErrorIncludesAllowedDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient stock").
		WithDetails(map[string]any{"sku": "SKU-A", "available": 2})
	WriteError(context.Background(), nil, rec, err)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeError(t, rec)
	details, ok := envelope.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SKU-A", details["sku"])
}

func TestWriteErrorWrapsUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	envelope := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInternal), envelope.Error.Code)
}
