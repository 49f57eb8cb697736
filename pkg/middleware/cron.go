package middleware

import (
	"crypto/subtle"
	"net/http"

	"adspace-booking/pkg/utils"

	"go.uber.org/zap"
)

const CronSecretHeader = "X-Cron-Secret"

// CronSecret guards externally triggered jobs. An empty secret disables the
// check, which is logged once at startup.
func CronSecret(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	if secret == "" {
		logger.Warn("Cron secret is empty; cron endpoints are unauthenticated")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				supplied := r.Header.Get(CronSecretHeader)
				if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
					logger.Warn("Rejected cron call", zap.String("path", r.URL.Path), zap.String("ip", r.RemoteAddr))
					utils.ResponseUnauthorized(w, "Invalid cron secret")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
