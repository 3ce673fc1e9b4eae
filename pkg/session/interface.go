package session

import "github.com/google/uuid"

type Registry interface {
	// --- Connection Lifecycle ---
	// Join registers a connection under an identity. Idempotent for a
	// connection that is already joined. Admin identities are auto-joined
	// to the admins room on every connection.
	Join(identity Identity, conn Conn, remoteIP string) *Client
	// Leave removes a connection from whichever identity it was registered
	// under and from all rooms. Disconnect events only carry the connection
	// handle, so lookup is by connection id. Unknown connections are a no-op.
	Leave(connID uuid.UUID)
	ClientFor(connID uuid.UUID) (*Client, bool)
	OldestConnection(identityID string) (Conn, bool)

	// --- Reachability ---
	// ConnectionsFor returns a snapshot of an identity's live connections.
	// Empty means unreachable, never an error.
	ConnectionsFor(identityID string) []Conn
	ConnectionCount(identityID string) int
	AllConnections() []Conn

	// --- Room Membership ---
	JoinRoom(connID uuid.UUID, room string)
	LeaveRoom(connID uuid.UUID, room string)
	// RoomConnections returns a snapshot of the room membership at the
	// moment of the call. Later joins do not retroactively see anything
	// emitted against this snapshot.
	RoomConnections(room string) []Conn
}
