package wire

import (
	"adspace-booking/internal/adaptor"
	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireSpace(
	r chi.Router,
	spaceHandler *adaptor.SpaceHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== PUBLIC ROUTES ====================
	r.Get("/api/spaces/{id}", spaceHandler.GetSpace)

	// GET /api/spaces/{id}/calendar?start_date=&end_date= - confirmed and active bookings
	r.Get("/api/spaces/{id}/calendar", spaceHandler.GetCalendar)

	// GET /api/spaces/{id}/availability?start_date=&end_date=
	r.Get("/api/spaces/{id}/availability", spaceHandler.CheckAvailability)

	// ==================== VENUE OWNER ROUTES ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))
		r.Use(middleware.RequireRole(log, string(entity.RoleVenueOwner)))

		r.Post("/api/spaces", spaceHandler.CreateSpace)
	})
}
