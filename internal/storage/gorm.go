package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("notification not found")

type GormStore struct {
	db *gorm.DB
}

var _ NotificationStore = (*GormStore)(nil)

// OpenGorm connects to postgres and migrates the notifications table.
func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Notification{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notifications table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}
	return nil
}

func (s *GormStore) ListFor(ctx context.Context, identityID string, unreadOnly bool) ([]Notification, error) {
	q := s.db.WithContext(ctx).
		Where("notification_identity_id = ?", identityID).
		Order("notification_created_at DESC").
		Limit(100)
	if unreadOnly {
		q = q.Where("notification_read = ?", false)
	}

	var notifs []Notification
	if err := q.Find(&notifs).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifs, nil
}

func (s *GormStore) MarkRead(ctx context.Context, identityID string, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("notification_id = ? AND notification_identity_id = ?", id, identityID).
		Update("notification_read", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) MarkAllRead(ctx context.Context, identityID string) error {
	err := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("notification_identity_id = ? AND notification_read = ?", identityID, false).
		Update("notification_read", true).Error
	if err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}
