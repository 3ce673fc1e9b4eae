package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/seifgad/acadgate/internal/storage"
	"github.com/seifgad/acadgate/pkg/session"
)

// EventReceived is the wire name of the push emitted for every new
// notification record.
const EventReceived = "notification:received"

// pushPayload carries enough for the client to decide whether to refetch
// its notification list, not the full record.
type pushPayload struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Fanout persists notification records and wakes up the target identity's
// live connections. Identities with no live connection simply miss the push;
// the next authenticated fetch of the list is the fallback delivery path.
type Fanout struct {
	logger   *slog.Logger
	store    storage.NotificationStore
	registry session.Registry
}

func NewFanout(logger *slog.Logger, store storage.NotificationStore, registry session.Registry) *Fanout {
	return &Fanout{
		logger:   logger.With(slog.String("component", "notify_fanout")),
		store:    store,
		registry: registry,
	}
}

// Notify persists a record for the identity and pushes a lightweight event
// to each of its live connections. Push failures are swallowed so a
// triggering domain action is never blocked or failed by delivery; only a
// persistence failure is reported back, and callers are free to ignore it.
func (f *Fanout) Notify(ctx context.Context, identityID, notifType, title string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("Failed to marshal notification payload",
			slog.String("identityID", identityID),
			slog.Any("error", err),
		)
		return err
	}

	record := &storage.Notification{
		ID:         uuid.New(),
		IdentityID: identityID,
		Type:       notifType,
		Title:      title,
		Payload:    string(body),
		CreatedAt:  time.Now(),
	}
	if err := f.store.Create(ctx, record); err != nil {
		f.logger.Error("Failed to persist notification",
			slog.String("identityID", identityID),
			slog.String("type", notifType),
			slog.Any("error", err),
		)
		return err
	}

	conns := f.registry.ConnectionsFor(identityID)
	if len(conns) == 0 {
		// unreachable identity: the record waits for the next list fetch
		f.logger.Debug("No live connections for notification target", slog.String("identityID", identityID))
		return nil
	}

	msg, err := session.Encode(EventReceived, pushPayload{
		ID:        record.ID,
		Type:      record.Type,
		Title:     record.Title,
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		f.logger.Error("Failed to encode notification push", slog.Any("error", err))
		return nil
	}
	for _, conn := range conns {
		conn.Send(msg)
	}

	f.logger.Debug("Notification pushed",
		slog.String("identityID", identityID),
		slog.String("type", notifType),
		slog.Int("connection_count", len(conns)),
	)
	return nil
}
