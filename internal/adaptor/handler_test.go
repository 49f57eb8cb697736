package adaptor

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/usecase"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleServiceError_StatusByKind(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{usecase.ErrInvalidCredentials, http.StatusUnauthorized},
		{apperror.Validation("bad"), http.StatusBadRequest},
		{apperror.Authorization("no"), http.StatusForbidden},
		{apperror.NotFound("gone"), http.StatusNotFound},
		{apperror.InvalidTransition("confirmed", "rejected"), http.StatusConflict},
		{apperror.SignatureMismatch(), http.StatusUnprocessableEntity},
		{apperror.NoRefundAvailable(1), http.StatusUnprocessableEntity},
		{apperror.PaymentGateway(errors.New("timeout"), "refund"), http.StatusBadGateway},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handleServiceError(rec, zap.NewNop(), tt.err, "test")
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
	}
}

func TestHandleServiceError_MasksInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, zap.NewNop(), errors.New("pq: password authentication failed"), "test")
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), `"kind":"internal"`)
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Reason string `json:"reason"`
	}

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	require.NoError(t, decodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":"late"}`))
	require.NoError(t, decodeJSON(req, &dst))
	assert.Equal(t, "late", dst.Reason)

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"reason":`))
	assert.Error(t, decodeJSON(req, &dst))
}

func TestActorFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := actorFrom(req)
	assert.False(t, ok)

	id := uuid.New()
	req = req.WithContext(utils.SetUserContext(req.Context(), id, string(entity.RoleVenueOwner)))
	actor, ok := actorFrom(req)
	require.True(t, ok)
	assert.Equal(t, usecase.Actor{ID: id, Role: entity.RoleVenueOwner}, actor)
}
