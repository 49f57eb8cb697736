package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/usecase"
	"adspace-booking/pkg/apperror"
	"adspace-booking/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Auth    *AuthHandler
	Space   *SpaceHandler
	Booking *BookingHandler
	Payment *PaymentHandler
	Cron    *CronHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(service.Auth, log),
		Space:   NewSpaceHandler(service.Space, log),
		Booking: NewBookingHandler(service.Booking, service.Refund, log),
		Payment: NewPaymentHandler(service.Payment, log),
		Cron:    NewCronHandler(service.Reconciliation, log),
	}
}

// actorFrom reads the caller resolved by middleware.AuthSession.
func actorFrom(r *http.Request) (usecase.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		return usecase.Actor{}, false
	}
	role, _ := utils.GetRoleFromContext(r.Context())
	return usecase.Actor{ID: userID, Role: entity.UserRole(role)}, true
}

// decodeJSON decodes an optional body; an empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleServiceError logs by error kind and writes the matching status.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	if errors.Is(err, usecase.ErrInvalidCredentials) {
		log.Warn(operation+" failed - invalid credentials")
		utils.ResponseUnauthorized(w, err.Error())
		return
	}

	kind := apperror.KindOf(err)
	switch kind {
	case apperror.KindInternal:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
	case apperror.KindPaymentGateway:
		log.Error(operation+" failed - payment gateway", zap.Error(err))
	default:
		log.Warn(operation+" failed", zap.Error(err), zap.String("kind", string(kind)))
	}
	utils.ResponseAppError(w, err)
}
