package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Notification is the persisted record behind the portal's notification
// list. The realtime core only writes it and decides whom to wake up; the
// portal's CRUD layer reads it back through the HTTP surface.
type Notification struct {
	ID         uuid.UUID      `gorm:"column:notification_id;primaryKey;type:uuid" json:"notification_id"`
	IdentityID string         `gorm:"column:notification_identity_id;type:varchar(64);not null;index" json:"identity_id"`
	Type       string         `gorm:"column:notification_type;type:varchar(64);not null" json:"type"`
	Title      string         `gorm:"column:notification_title;type:varchar(255);not null" json:"title"`
	Payload    string         `gorm:"column:notification_payload;type:text" json:"payload"`
	Tags       pq.StringArray `gorm:"column:notification_tags;type:text[]" json:"tags"`
	Read       bool           `gorm:"column:notification_read;not null;default:false" json:"read"`
	CreatedAt  time.Time      `gorm:"column:notification_created_at;autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// NotificationStore is the collaborator persistence contract. The gorm
// implementation backs real deployments; the memory implementation backs
// tests and DSN-less development runs.
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	ListFor(ctx context.Context, identityID string, unreadOnly bool) ([]Notification, error)
	MarkRead(ctx context.Context, identityID string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, identityID string) error
}
