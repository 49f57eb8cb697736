package wire

import (
	"adspace-booking/internal/adaptor"
	"adspace-booking/internal/data/repository"
	"adspace-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	// ==================== GATEWAY CALLBACK ====================
	// Authenticated by X-Razorpay-Signature, not by session
	r.Post("/api/payments/webhook", paymentHandler.Webhook)

	// ==================== PROTECTED ROUTES ====================
	r.With(middleware.AuthSession(repo.Session, log)).Post("/api/payments/verify", paymentHandler.VerifyPayment)
}
