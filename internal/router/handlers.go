package router

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/seifgad/acadgate/internal/coauth"
	"github.com/seifgad/acadgate/pkg/session"
	"github.com/tidwall/gjson"
)

// Client->server wire event names.
const (
	EventAdminJoin     = "admin:join"
	EventAdminResponse = "admin:response"
	EventLoginRequest  = "login:request"
)

// RegisterAdminEvents wires the events available on the authenticated
// portal socket.
func RegisterAdminEvents(r *EventRouter, registry session.Registry, coordinator *coauth.Coordinator) {
	// admins are auto-subscribed on connect; the explicit join stays for
	// clients that left the room and want back in without reconnecting
	r.Handle(EventAdminJoin, session.RoleAdmin, func(_ context.Context, client *session.Client, _ json.RawMessage) error {
		registry.JoinRoom(client.Conn.ID(), session.AdminsRoom)
		return nil
	})

	r.Handle(EventAdminResponse, session.RoleAdmin, func(ctx context.Context, client *session.Client, payload json.RawMessage) error {
		requestID := gjson.GetBytes(payload, "request_id")
		approved := gjson.GetBytes(payload, "approved")
		if !requestID.Exists() || !approved.Exists() {
			return errors.New("admin:response requires request_id and approved")
		}

		admin := client.Identity
		if name := gjson.GetBytes(payload, "admin_name"); name.Exists() {
			admin.Name = name.String()
		}
		coordinator.Respond(ctx, requestID.String(), approved.Bool(), admin)
		return nil
	})
}

// RegisterLoginEvents wires the single event available on the pre-auth
// login channel. It must go on that channel's own router, never on the
// portal socket's: the requester is not an authenticated identity, so no
// role gate applies, and an authenticated socket must not be able to start
// approval rounds with an arbitrary name and email. The outcome comes back
// on this same connection.
func RegisterLoginEvents(r *EventRouter, coordinator *coauth.Coordinator) {
	r.Handle(EventLoginRequest, "", func(_ context.Context, client *session.Client, payload json.RawMessage) error {
		email := gjson.GetBytes(payload, "email")
		if !email.Exists() || email.String() == "" {
			return errors.New("login:request requires an email")
		}
		name := gjson.GetBytes(payload, "name").String()

		coordinator.Begin(client.Conn, name, email.String(), client.RemoteIP)
		return nil
	})
}
