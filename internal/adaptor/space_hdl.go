package adaptor

import (
	"net/http"

	"adspace-booking/internal/dto/request"
	"adspace-booking/internal/usecase"
	"adspace-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SpaceHandler struct {
	service usecase.SpaceService
	log     *zap.Logger
}

func NewSpaceHandler(service usecase.SpaceService, log *zap.Logger) *SpaceHandler {
	return &SpaceHandler{
		service: service,
		log:     log.With(zap.String("handler", "space")),
	}
}

// CreateSpace handles POST /api/spaces (venue owners)
func (h *SpaceHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.CreateSpaceRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	space, err := h.service.CreateSpace(r.Context(), actor, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create space")
		return
	}

	utils.ResponseCreated(w, "Space created", space)
}

// GetSpace handles GET /api/spaces/{id}
func (h *SpaceHandler) GetSpace(w http.ResponseWriter, r *http.Request) {
	space, err := h.service.GetSpace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "get space")
		return
	}

	utils.ResponseSuccess(w, "Space retrieved", space)
}

// GetCalendar handles GET /api/spaces/{id}/calendar?start_date=&end_date=
func (h *SpaceHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	calendar, err := h.service.GetCalendar(r.Context(), chi.URLParam(r, "id"), dateRange(r))
	if err != nil {
		handleServiceError(w, h.log, err, "get calendar")
		return
	}

	utils.ResponseSuccess(w, "Calendar retrieved", calendar)
}

// CheckAvailability handles GET /api/spaces/{id}/availability?start_date=&end_date=
func (h *SpaceHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.service.CheckAvailability(r.Context(), chi.URLParam(r, "id"), dateRange(r))
	if err != nil {
		handleServiceError(w, h.log, err, "check availability")
		return
	}

	utils.ResponseSuccess(w, "Availability checked", availability)
}

func dateRange(r *http.Request) *request.DateRangeRequest {
	q := r.URL.Query()
	return &request.DateRangeRequest{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
}
