package session

import (
	"time"

	"github.com/google/uuid"
)

// Role is the portal-level role carried by an identity's token.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"

	// RoleService is held by the portal's CRUD backend, not by end users.
	// It is the only role allowed to hand domain events to the fan-out.
	RoleService Role = "service"
)

// AdminsRoom is the broadcast group every connected admin belongs to.
// Membership is a side effect of an admin connection registering, not a
// separate subscription step.
const AdminsRoom = "admins"

// Identity is a stable portal account, independent of any single connection.
type Identity struct {
	ID   string
	Role Role
	Name string
}

// Conn is the minimal duplex-channel surface the core needs from the
// transport layer. transport.Connection satisfies it; tests use fakes.
type Conn interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Client is the registry's per-connection profile: one live connection tied
// to the identity it authenticated as.
type Client struct {
	Conn        Conn
	Identity    Identity
	RemoteIP    string
	ConnectedAt time.Time
}
