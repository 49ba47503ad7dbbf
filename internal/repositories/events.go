package repositories

import (
	"context"
	"errors"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventFilter struct {
	StartsAfter  *time.Time
	ConflictOnly bool
}

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(event).Error
}

func (r *EventRepository) Save(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(event).Error
}

func (r *EventRepository) GetForUser(ctx context.Context, userID, id uint) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("event", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *EventRepository) ListByUser(ctx context.Context, userID uint, filter EventFilter) ([]models.Event, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.StartsAfter != nil {
		query = query.Where("start_time >= ?", filter.StartsAfter.UTC())
	}
	if filter.ConflictOnly {
		query = query.Where("is_conflict = ?", true)
	}

	var events []models.Event
	err := query.Order("start_time ASC, id ASC").Find(&events).Error
	return events, err
}

func (r *EventRepository) ListOverlapping(ctx context.Context, userID, excludeID uint, start, end time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("id <> ?", excludeID).
		Where("start_time < ?", end.UTC()).
		Where("end_time > ?", start.UTC()).
		Order("id ASC").
		Find(&events).Error
	return events, err
}

func (r *EventRepository) ListInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND start_time < ? AND end_time >= ?", userID, to.UTC(), from.UTC()).
		Order("start_time ASC").
		Find(&events).Error
	return events, err
}

func (r *EventRepository) SetConflict(ctx context.Context, ids []uint, conflict bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id IN ?", ids).
		Update("is_conflict", conflict).Error
}

func (r *EventRepository) FindByLegacyLink(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND external_provider = ? AND external_id = ?", userID, provider, externalID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Delete removes an event together with its notifications and sync links.
func (r *EventRepository) Delete(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&models.Event{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("event", id)
		}
		if err := tx.Where("event_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&models.EventSyncMetadata{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Event{}).Error
	})
}
