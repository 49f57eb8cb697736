package adaptor

import (
	"net/http"

	"adspace-booking/internal/dto/response"
	"adspace-booking/internal/usecase"
	"adspace-booking/pkg/utils"

	"go.uber.org/zap"
)

// CronHandler exposes the reconciliation sweeps to an external scheduler.
type CronHandler struct {
	service usecase.ReconciliationService
	log     *zap.Logger
}

func NewCronHandler(service usecase.ReconciliationService, log *zap.Logger) *CronHandler {
	return &CronHandler{
		service: service,
		log:     log.With(zap.String("handler", "cron")),
	}
}

// CancelUnpaid handles POST /api/cron/cancel-unpaid
func (h *CronHandler) CancelUnpaid(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.service.CancelUnpaid(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "cancel unpaid bookings")
		return
	}

	utils.ResponseSuccess(w, "Unpaid bookings cancelled", response.SweepToResponse(cancelled, nil, nil))
}

// AdvanceLifecycle handles POST /api/cron/advance-lifecycle
func (h *CronHandler) AdvanceLifecycle(w http.ResponseWriter, r *http.Request) {
	activated, completed, err := h.service.AdvanceLifecycle(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "advance booking lifecycle")
		return
	}

	utils.ResponseSuccess(w, "Booking lifecycle advanced", response.SweepToResponse(nil, activated, completed))
}

// Sweep handles POST /api/cron/sweep
func (h *CronHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Sweep(r.Context())
	if err != nil {
		handleServiceError(w, h.log, err, "run sweep")
		return
	}

	utils.ResponseSuccess(w, "Sweep completed", result)
}
