package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Envelope is the wire frame for every realtime event, in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals an event and its payload into a wire frame.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for event '%s': %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// Broadcaster emits events to rooms and individual connections. Delivery is
// fire-and-forget: members mid-reconnect at emit time simply miss the event.
type Broadcaster struct {
	logger   *slog.Logger
	registry Registry
}

func NewBroadcaster(logger *slog.Logger, registry Registry) *Broadcaster {
	return &Broadcaster{
		logger:   logger.With(slog.String("component", "broadcaster")),
		registry: registry,
	}
}

// Broadcast delivers an event to every connection that is a member of the
// room at the moment of the call.
func (b *Broadcaster) Broadcast(room, event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		b.logger.Error("Failed to encode broadcast", slog.String("event", event), slog.Any("error", err))
		return
	}

	conns := b.registry.RoomConnections(room)
	for _, conn := range conns {
		conn.Send(msg)
	}
	b.logger.Debug("Broadcast delivered",
		slog.String("room", room),
		slog.String("event", event),
		slog.Int("connection_count", len(conns)),
	)
}

// Push delivers an event to a single connection.
func (b *Broadcaster) Push(conn Conn, event string, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		b.logger.Error("Failed to encode push", slog.String("event", event), slog.Any("error", err))
		return
	}
	conn.Send(msg)
}
