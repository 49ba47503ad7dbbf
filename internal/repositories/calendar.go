package repositories

import (
	"context"
	"errors"

	"planner/backend/internal/models"

	"gorm.io/gorm"
)

// CalendarRepository persists shadow copies of remote items.
type CalendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func (r *CalendarRepository) FindTask(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.CalendarTask, error) {
	var task models.CalendarTask
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND external_provider = ? AND external_id = ?", userID, provider, externalID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *CalendarRepository) SaveTask(ctx context.Context, task *models.CalendarTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *CalendarRepository) ListTasks(ctx context.Context, userID uint, provider models.Provider) ([]models.CalendarTask, error) {
	var tasks []models.CalendarTask
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND external_provider = ?", userID, provider).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *CalendarRepository) FindEvent(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
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

func (r *CalendarRepository) SaveEvent(ctx context.Context, event *models.CalendarEvent) error {
	return r.db.WithContext(ctx).Save(event).Error
}

// ListEvents returns shadow events; an empty provider returns all of them.
func (r *CalendarRepository) ListEvents(ctx context.Context, userID uint, provider models.Provider) ([]models.CalendarEvent, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if provider != "" {
		query = query.Where("external_provider = ?", provider)
	}
	var events []models.CalendarEvent
	err := query.Order("start_time ASC, id ASC").Find(&events).Error
	return events, err
}
