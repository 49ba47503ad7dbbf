package repositories

import (
	"context"
	"errors"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ReplaceForTask swaps every notification of a task for the given set.
func (r *NotificationRepository) ReplaceForTask(ctx context.Context, taskID uint, notifications []models.Notification) error {
	return r.replace(ctx, "task_id = ?", taskID, notifications)
}

func (r *NotificationRepository) ReplaceForEvent(ctx context.Context, eventID uint, notifications []models.Notification) error {
	return r.replace(ctx, "event_id = ?", eventID, notifications)
}

func (r *NotificationRepository) replace(ctx context.Context, cond string, id uint, notifications []models.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(cond, id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if len(notifications) == 0 {
			return nil
		}
		return tx.Omit(clause.Associations).Create(&notifications).Error
	})
}

// ListPending returns the user's active unread notifications with their parents loaded.
func (r *NotificationRepository) ListPending(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Preload("Task").
		Preload("Event").
		Where("user_id = ? AND is_active = ? AND status = ?", userID, true, models.NotificationUnread).
		Order("scheduled_for ASC, id ASC").
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepository) ListForTask(ctx context.Context, taskID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("scheduled_for ASC").Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepository) ListForEvent(ctx context.Context, eventID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Order("scheduled_for ASC").Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepository) GetForUser(ctx context.Context, userID, id uint) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&notification).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("notification", id)
	}
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepository) Save(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(notification).Error
}

// MarkAllRead moves every unread notification of the user to read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationUnread).
		Update("status", models.NotificationRead)
	return res.RowsAffected, res.Error
}
