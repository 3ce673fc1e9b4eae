package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seifgad/acadgate/pkg/session"
)

type member struct {
	client *session.Client
	rooms  map[string]struct{}
}

// InMemoryRegistry tracks which identities currently hold live connections
// and which rooms those connections belong to. A single lock guards all
// three indexes so reads (which return copies) never observe a
// partially-updated set.
type InMemoryRegistry struct {
	mu         sync.RWMutex
	conns      map[uuid.UUID]*member
	identities map[string]map[uuid.UUID]*member
	rooms      map[string]map[uuid.UUID]*member

	logger *slog.Logger
}

func NewInMemoryRegistry(logger *slog.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		conns:      make(map[uuid.UUID]*member),
		identities: make(map[string]map[uuid.UUID]*member),
		rooms:      make(map[string]map[uuid.UUID]*member),
		logger:     logger.With(slog.String("component", "session_registry")),
	}
}

// compile-time check to ensure InMemoryRegistry implements Registry.
var _ session.Registry = (*InMemoryRegistry)(nil)

func (r *InMemoryRegistry) Join(identity session.Identity, conn session.Conn, remoteIP string) *session.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	if m, exists := r.conns[connID]; exists {
		// already joined; joins are idempotent
		return m.client
	}

	m := &member{
		client: &session.Client{
			Conn:        conn,
			Identity:    identity,
			RemoteIP:    remoteIP,
			ConnectedAt: time.Now(),
		},
		rooms: make(map[string]struct{}),
	}
	r.conns[connID] = m

	set, exists := r.identities[identity.ID]
	if !exists {
		set = make(map[uuid.UUID]*member)
		r.identities[identity.ID] = set
	}
	set[connID] = m

	// every admin connection is auto-subscribed to the admins room
	if identity.Role == session.RoleAdmin {
		r.joinRoomLocked(connID, m, session.AdminsRoom)
	}

	r.logger.Debug("Connection joined",
		slog.String("connID", connID.String()),
		slog.String("identityID", identity.ID),
	)
	return m.client
}

func (r *InMemoryRegistry) Leave(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		// reconnect/disconnect ordering is not guaranteed by the transport,
		// so leaving an unknown connection is a defined no-op
		return
	}
	delete(r.conns, connID)

	identityID := m.client.Identity.ID
	if set, ok := r.identities[identityID]; ok {
		delete(set, connID)
		// no dangling empty sets: the identity becomes unreachable now
		if len(set) == 0 {
			delete(r.identities, identityID)
			r.logger.Debug("Identity unreachable", slog.String("identityID", identityID))
		}
	}

	for room := range m.rooms {
		r.leaveRoomLocked(connID, m, room)
	}

	r.logger.Debug("Connection left",
		slog.String("connID", connID.String()),
		slog.String("identityID", identityID),
	)
}

func (r *InMemoryRegistry) ClientFor(connID uuid.UUID) (*session.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return m.client, true
}

func (r *InMemoryRegistry) OldestConnection(identityID string) (session.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.identities[identityID]
	if !ok {
		return nil, false
	}

	var oldest *session.Client
	for _, m := range set {
		if oldest == nil || m.client.ConnectedAt.Before(oldest.ConnectedAt) {
			oldest = m.client
		}
	}
	if oldest == nil {
		return nil, false
	}
	return oldest.Conn, true
}

func (r *InMemoryRegistry) ConnectionsFor(identityID string) []session.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.identities[identityID]
	if !ok {
		return nil
	}
	conns := make([]session.Conn, 0, len(set))
	for _, m := range set {
		conns = append(conns, m.client.Conn)
	}
	return conns
}

func (r *InMemoryRegistry) ConnectionCount(identityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities[identityID])
}

func (r *InMemoryRegistry) AllConnections() []session.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]session.Conn, 0, len(r.conns))
	for _, m := range r.conns {
		conns = append(conns, m.client.Conn)
	}
	return conns
}

// --- Room Membership ---

func (r *InMemoryRegistry) JoinRoom(connID uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		r.logger.Warn("Cannot join room: connection not registered",
			slog.String("connID", connID.String()),
			slog.String("room", room),
		)
		return
	}
	r.joinRoomLocked(connID, m, room)
}

func (r *InMemoryRegistry) LeaveRoom(connID uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return
	}
	r.leaveRoomLocked(connID, m, room)
}

func (r *InMemoryRegistry) RoomConnections(room string) []session.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	conns := make([]session.Conn, 0, len(members))
	for _, m := range members {
		conns = append(conns, m.client.Conn)
	}
	return conns
}

func (r *InMemoryRegistry) joinRoomLocked(connID uuid.UUID, m *member, room string) {
	members, exists := r.rooms[room]
	if !exists {
		members = make(map[uuid.UUID]*member)
		r.rooms[room] = members
	}
	members[connID] = m
	m.rooms[room] = struct{}{}
	r.logger.Debug("Connection joined room",
		slog.String("connID", connID.String()),
		slog.String("room", room),
	)
}

func (r *InMemoryRegistry) leaveRoomLocked(connID uuid.UUID, m *member, room string) {
	delete(m.rooms, room)
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	// memory hygiene: drop the room once the last member leaves
	if len(members) == 0 {
		delete(r.rooms, room)
		r.logger.Debug("Removed empty room", slog.String("room", room))
	}
}
