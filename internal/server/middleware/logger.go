package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs each request that made it past the middlewares in
// front of it. On authenticated chains it runs after auth, so the log line
// carries the identity; on the pre-auth login channel only the IP is known.
func NewRequestLogger(logger *slog.Logger) Middleware {
	log := logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				args = append(args, slog.String("ip", reqMeta.IP))
				if reqMeta.Identity.ID != "" {
					args = append(args,
						slog.String("identityID", reqMeta.Identity.ID),
						slog.String("role", string(reqMeta.Identity.Role)),
					)
				}
			}
			log.Info("Incoming request", args...)
			next.ServeHTTP(w, r)
		})
	}
}
