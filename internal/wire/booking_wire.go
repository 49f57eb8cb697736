package wire

import (
	"adspace-booking/internal/adaptor"
	"adspace-booking/internal/data/entity"
	"adspace-booking/internal/data/repository"
	"adspace-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	paymentHandler *adaptor.PaymentHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/bookings", func(r chi.Router) {
		r.Use(middleware.AuthSession(repo.Session, log))

		// POST /api/bookings - brands only
		r.With(middleware.RequireRole(log, string(entity.RoleBrand))).Post("/", bookingHandler.CreateBooking)

		// GET /api/bookings - scoped to the caller's role
		r.Get("/", bookingHandler.ListBookings)
		r.Get("/{id}", bookingHandler.GetBooking)
		r.Get("/{id}/settlement", bookingHandler.GetSettlement)

		r.Put("/{id}/reject", bookingHandler.RejectBooking)
		r.Put("/{id}/cancel", bookingHandler.CancelBooking)

		r.Post("/{id}/payment-order", paymentHandler.CreateOrder)
		r.Post("/{id}/refund", bookingHandler.RequestRefund)
	})
}
