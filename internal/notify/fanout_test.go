package notify_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/seifgad/acadgate/internal/notify"
	"github.com/seifgad/acadgate/internal/storage"
	"github.com/seifgad/acadgate/pkg/session"
	"github.com/seifgad/acadgate/pkg/session/registry"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	id uuid.UUID

	mu       sync.Mutex
	messages [][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{id: uuid.New()} }

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
}

func (c *fakeConn) Close(error) {}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func TestNotifyPushesToAllLiveConnections(t *testing.T) {
	reg := registry.NewInMemoryRegistry(newTestLogger())
	store := storage.NewMemoryStore()
	f := notify.NewFanout(newTestLogger(), store, reg)

	conn1, conn2 := newFakeConn(), newFakeConn()
	identity := session.Identity{ID: "u1", Role: session.RoleStudent, Name: "U One"}
	reg.Join(identity, conn1, "1.1.1.1")
	reg.Join(identity, conn2, "2.2.2.2")

	err := f.Notify(context.Background(), "u1", "Message", "New message from faculty", map[string]string{"from": "f1"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	for _, conn := range []*fakeConn{conn1, conn2} {
		msgs := conn.received()
		if len(msgs) != 1 {
			t.Fatalf("Expected 1 push on connection %s, got %d", conn.ID(), len(msgs))
		}
		var env session.Envelope
		if err := json.Unmarshal(msgs[0], &env); err != nil {
			t.Fatalf("Failed to unmarshal push: %v", err)
		}
		if env.Event != notify.EventReceived {
			t.Errorf("Expected event %s, got %s", notify.EventReceived, env.Event)
		}
	}
}

func TestNotifyUnreachableIdentityPersistsWithoutPush(t *testing.T) {
	reg := registry.NewInMemoryRegistry(newTestLogger())
	store := storage.NewMemoryStore()
	f := notify.NewFanout(newTestLogger(), store, reg)

	err := f.Notify(context.Background(), "u2", "Enrollment", "Enrolled in CS101", nil)
	if err != nil {
		t.Fatalf("Notify for unreachable identity should not error, got: %v", err)
	}

	notifs, err := store.ListFor(context.Background(), "u2", false)
	if err != nil {
		t.Fatalf("ListFor failed: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", len(notifs))
	}
	if notifs[0].Read {
		t.Error("Expected new record to be unread")
	}
	if notifs[0].Type != "Enrollment" {
		t.Errorf("Expected type Enrollment, got %s", notifs[0].Type)
	}
}

func TestNotifyDoesNotLeakToOtherIdentities(t *testing.T) {
	reg := registry.NewInMemoryRegistry(newTestLogger())
	store := storage.NewMemoryStore()
	f := notify.NewFanout(newTestLogger(), store, reg)

	target := newFakeConn()
	bystander := newFakeConn()
	reg.Join(session.Identity{ID: "u1", Role: session.RoleStudent}, target, "1.1.1.1")
	reg.Join(session.Identity{ID: "u3", Role: session.RoleStudent}, bystander, "3.3.3.3")

	if err := f.Notify(context.Background(), "u1", "Inquiry", "New inquiry reply", nil); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if got := len(target.received()); got != 1 {
		t.Errorf("Expected target to receive 1 push, got %d", got)
	}
	if got := len(bystander.received()); got != 0 {
		t.Errorf("Expected bystander to receive nothing, got %d", got)
	}
}
