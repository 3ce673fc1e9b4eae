package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/seifgad/acadgate/internal/server/middleware"
	"github.com/seifgad/acadgate/internal/storage"
	"github.com/seifgad/acadgate/pkg/session"
)

// The notification list surface the portal clients poll. This is the
// fallback delivery path for identities that had no live connection when
// the push went out.

func (a *App) listNotifications(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifs, err := a.notifStore.ListFor(r.Context(), reqMeta.Identity.ID, unreadOnly)
	if err != nil {
		a.logger.Error("Failed to list notifications",
			slog.String("identityID", reqMeta.Identity.ID),
			slog.Any("error", err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if notifs == nil {
		notifs = []storage.Notification{}
	}
	writeJSON(w, http.StatusOK, notifs)
}

func (a *App) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid notification id", http.StatusBadRequest)
		return
	}

	if err := a.notifStore.MarkRead(r.Context(), reqMeta.Identity.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		a.logger.Error("Failed to mark notification read",
			slog.String("identityID", reqMeta.Identity.ID),
			slog.Any("error", err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (a *App) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := a.notifStore.MarkAllRead(r.Context(), reqMeta.Identity.ID); err != nil {
		a.logger.Error("Failed to mark all notifications read",
			slog.String("identityID", reqMeta.Identity.ID),
			slog.Any("error", err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// handleDomainEvent receives a domain event from the portal's CRUD layer
// (new message, enrollment, inquiry, ...) and hands it to the fan-out. The
// response is 202 regardless of push delivery: fan-out never fails the
// triggering domain action. Only the CRUD layer's service credential may
// call it; end-user tokens must not be able to write notifications onto
// other identities.
func (a *App) handleDomainEvent(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if reqMeta.Identity.Role != session.RoleService {
		a.logger.Warn("Non-service caller rejected from event ingest",
			slog.String("identityID", reqMeta.Identity.ID),
			slog.String("role", string(reqMeta.Identity.Role)),
		)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var event struct {
		IdentityID string          `json:"identity_id"`
		Type       string          `json:"type"`
		Title      string          `json:"title"`
		Payload    json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Invalid event body", http.StatusBadRequest)
		return
	}
	if event.IdentityID == "" || event.Type == "" {
		http.Error(w, "identity_id and type are required", http.StatusBadRequest)
		return
	}

	if err := a.fanout.Notify(r.Context(), event.IdentityID, event.Type, event.Title, event.Payload); err != nil {
		a.logger.Warn("Domain event fan-out reported an error",
			slog.String("identityID", event.IdentityID),
			slog.Any("error", err),
		)
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
