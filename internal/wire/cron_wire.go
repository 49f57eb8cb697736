package wire

import (
	"adspace-booking/internal/adaptor"
	"adspace-booking/pkg/middleware"
	"adspace-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireCron(
	r chi.Router,
	cronHandler *adaptor.CronHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(config.Cron.Secret, log))

		r.Post("/cancel-unpaid", cronHandler.CancelUnpaid)
		r.Post("/advance-lifecycle", cronHandler.AdvanceLifecycle)
		r.Post("/sweep", cronHandler.Sweep)
	})
}
