package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/seifgad/acadgate/pkg/session"
)

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// stamps an identity onto the request metadata, standing in for the auth
// middleware that normally runs in front of the logger.
func identityStamper(id session.Identity) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				reqMeta.Identity = id
			}
			next.ServeHTTP(w, r)
		})
	}
}

func TestRequestLoggerIncludesIdentityAfterAuth(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Chain(noopHandler(),
		RequestMetadataMiddleware(),
		identityStamper(session.Identity{ID: "fac-7", Role: session.RoleFaculty}),
		NewRequestLogger(logger),
	)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	req.RemoteAddr = "10.0.0.9:51234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{"component=http", "method=GET", "path=/notifications", "ip=10.0.0.9", "identityID=fac-7", "role=faculty"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestRequestLoggerOmitsIdentityOnPreAuthChannel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := Chain(noopHandler(),
		RequestMetadataMiddleware(),
		NewRequestLogger(logger),
	)

	req := httptest.NewRequest(http.MethodGet, "/ws/login", nil)
	req.RemoteAddr = "10.0.0.9:51234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, "path=/ws/login") || !strings.Contains(out, "ip=10.0.0.9") {
		t.Fatalf("log line missing request facts: %s", out)
	}
	if strings.Contains(out, "identityID") {
		t.Errorf("pre-auth log line should not carry an identity: %s", out)
	}
}
