package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/seifgad/acadgate/pkg/session"
)

// Handler processes one inbound event for one connection. Handlers operate
// on an explicit (client, payload) contract so they can be invoked directly
// in tests without standing up a transport.
type Handler func(ctx context.Context, client *session.Client, payload json.RawMessage) error

type route struct {
	handler Handler
	role    session.Role // "" means any caller, including the pre-auth login channel
}

// EventRouter maps wire event names to handlers.
type EventRouter struct {
	logger *slog.Logger
	routes map[string]route
}

func NewEventRouter(logger *slog.Logger) *EventRouter {
	return &EventRouter{
		logger: logger.With(slog.String("component", "event_router")),
		routes: make(map[string]route),
	}
}

// Handle registers a handler for an event name, optionally gated to a role.
func (r *EventRouter) Handle(event string, role session.Role, handler Handler) {
	if _, exists := r.routes[event]; exists {
		panic("event handler already registered: " + event)
	}
	r.routes[event] = route{handler: handler, role: role}
}

// Dispatch decodes a wire frame and runs the matching handler. Unknown
// events and role mismatches are dropped with a warn log; the sender gets
// no error back.
func (r *EventRouter) Dispatch(ctx context.Context, client *session.Client, msg []byte) {
	var env session.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		r.logger.Warn("Failed to unmarshal client message",
			slog.String("connID", client.Conn.ID().String()),
			slog.Any("error", err),
		)
		return
	}

	rt, ok := r.routes[env.Event]
	if !ok {
		r.logger.Warn("Received unknown event",
			slog.String("event", env.Event),
			slog.String("connID", client.Conn.ID().String()),
		)
		return
	}
	if rt.role != "" && client.Identity.Role != rt.role {
		r.logger.Warn("Dropping event from connection without required role",
			slog.String("event", env.Event),
			slog.String("connID", client.Conn.ID().String()),
			slog.String("role", string(client.Identity.Role)),
		)
		return
	}

	r.logger.Debug("Dispatching event",
		slog.String("event", env.Event),
		slog.String("connID", client.Conn.ID().String()),
	)
	if err := rt.handler(ctx, client, env.Payload); err != nil {
		r.logger.Error("Event handler failed",
			slog.String("event", env.Event),
			slog.Any("error", err),
		)
	}
}
