package middleware

import (
	"log/slog"
	"net/http"

	"github.com/seifgad/acadgate/pkg/config"
)

type ConnectionCounter func(identityID string) int
type ConnectionCycler func(identityID string)

// NewConnectionLimiter caps live connections per identity. In "cycle" mode
// the oldest connection is closed to make room; in "reject" mode the new
// request is refused. Must run after the auth middleware.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter ConnectionCounter,
	cycler ConnectionCycler,
	cfg config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MaxPerIdentity <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if reqMeta.Identity.ID == "" {
				logger.Warn("Connection limiter could not determine identity; blocking request for safety.")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			count := counter(reqMeta.Identity.ID)
			if count < cfg.MaxPerIdentity {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("Identity connection limit reached",
				slog.String("identityID", reqMeta.Identity.ID),
				slog.Int("count", count),
			)
			switch cfg.Mode {
			case "reject":
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
			case "cycle":
				cycler(reqMeta.Identity.ID)
				next.ServeHTTP(w, r)
			default:
				logger.Error("Invalid connection limit mode configured", slog.String("mode", cfg.Mode))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		})
	}
}
