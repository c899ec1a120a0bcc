package store

import (
	"context"
	"fmt"

	"github.com/CoderLord25/ZenSocial/internal/models"
)

// --- Notification operations ---

func (s *Store) AddNotification(ctx context.Context, n models.Notification) error {
	n.ID = 0
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		logg.Error("store", "Failed to add notification", err)
		return fmt.Errorf("add notification: %w", err)
	}
	return nil
}

// ListNotifications returns the newest notifications of userID first.
func (s *Store) ListNotifications(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	var res []models.Notification
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&res).Error
	if err != nil {
		logg.Error("store", "Failed to list notifications", err)
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return res, nil
}

func (s *Store) MarkNotificationsRead(ctx context.Context, userID int64) error {
	err := s.DB.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
