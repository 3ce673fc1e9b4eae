package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/seifgad/acadgate/pkg/session"
)

// PortalClaims is the claim set the portal's identity layer issues. The
// realtime core only decodes it; issuing and auth policy live elsewhere.
type PortalClaims struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthMiddleware validates the portal token (cookie first, then bearer
// header) and fills the request metadata with the authenticated identity.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// couldn't extract metadata from request so something went wrong with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := tokenFromRequest(r, cookieName)
			if tokenString == "" {
				logger.Warn("No portal token attached to request", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token with HMAC signing
			token, err := jwt.ParseWithClaims(tokenString, &PortalClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("Invalid portal token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*PortalClaims)
			if !ok {
				logger.Error("Failed to parse portal token claims", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			role, ok := parseRole(claims.Role)
			if !ok {
				logger.Warn("Token carries unknown role",
					slog.String("ip", reqMeta.IP),
					slog.String("role", claims.Role),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			reqMeta.Identity = session.Identity{
				ID:   claims.Subject,
				Role: role,
				Name: claims.Name,
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func parseRole(s string) (session.Role, bool) {
	switch session.Role(s) {
	case session.RoleAdmin, session.RoleFaculty, session.RoleStudent, session.RoleService:
		return session.Role(s), true
	default:
		return "", false
	}
}
