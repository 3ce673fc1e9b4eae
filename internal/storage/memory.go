package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process NotificationStore for tests and development
// runs without a database.
type MemoryStore struct {
	mu     sync.Mutex
	notifs []Notification
}

var _ NotificationStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifs = append(s.notifs, *n)
	return nil
}

func (s *MemoryStore) ListFor(_ context.Context, identityID string, unreadOnly bool) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Notification
	for _, n := range s.notifs {
		if n.IdentityID != identityID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, identityID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifs {
		if s.notifs[i].ID == id && s.notifs[i].IdentityID == identityID {
			s.notifs[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkAllRead(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifs {
		if s.notifs[i].IdentityID == identityID {
			s.notifs[i].Read = true
		}
	}
	return nil
}
