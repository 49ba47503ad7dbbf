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

// TaskFilter narrows ListByUser. Zero values mean "no constraint".
type TaskFilter struct {
	Statuses     []models.TaskStatus
	StartsAfter  *time.Time
	ConflictOnly bool
	Order        string
}

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(task).Error
}

func (r *TaskRepository) GetForUser(ctx context.Context, userID, id uint) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("task", id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint, filter TaskFilter) ([]models.Task, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.StartsAfter != nil {
		query = query.Where("start_time >= ?", filter.StartsAfter.UTC())
	}
	if filter.ConflictOnly {
		query = query.Where("is_conflict = ?", true)
	}
	order := filter.Order
	if order == "" {
		order = "start_time ASC, id ASC"
	}

	var tasks []models.Task
	err := query.Order(order).Find(&tasks).Error
	return tasks, err
}

// ListOverlapping returns tasks of the user whose window [start, end) intersects
// the given one, skipping excludeID. Empty statuses matches any status.
func (r *TaskRepository) ListOverlapping(ctx context.Context, userID, excludeID uint, start, end time.Time, statuses []models.TaskStatus) ([]models.Task, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("id <> ?", excludeID).
		Where("start_time < ?", end.UTC()).
		Where("end_time > ?", start.UTC())
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var tasks []models.Task
	err := query.Order("id ASC").Find(&tasks).Error
	return tasks, err
}

// ListInRange returns tasks whose window touches [from, to).
func (r *TaskRepository) ListInRange(ctx context.Context, userID uint, from, to time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND start_time < ? AND end_time >= ?", userID, to.UTC(), from.UTC()).
		Order("start_time ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) SetConflict(ctx context.Context, ids []uint, conflict bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id IN ?", ids).
		Update("is_conflict", conflict).Error
}

// FindByLegacyLink finds a task pushed before sync metadata existed.
func (r *TaskRepository) FindByLegacyLink(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND linked_to = ? AND external_id = ?", userID, provider, externalID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Delete removes a task together with its notifications and sync links.
func (r *TaskRepository) Delete(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("task", id)
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskSyncMetadata{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{}).Error
	})
}
