package repositories

import (
	"context"
	"errors"
	"time"

	"planner/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncLinkRepository stores the per-provider external ids of local tasks and events.
type SyncLinkRepository struct {
	db *gorm.DB
}

func NewSyncLinkRepository(db *gorm.DB) *SyncLinkRepository {
	return &SyncLinkRepository{db: db}
}

func (r *SyncLinkRepository) TaskLink(ctx context.Context, taskID uint, provider models.Provider) (*models.TaskSyncMetadata, error) {
	var link models.TaskSyncMetadata
	err := r.db.WithContext(ctx).Where("task_id = ? AND provider = ?", taskID, provider).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *SyncLinkRepository) LinkTask(ctx context.Context, taskID uint, provider models.Provider, externalID string, at time.Time) error {
	link := models.TaskSyncMetadata{TaskID: taskID, Provider: provider, ExternalID: externalID, LastSynced: at.UTC()}
	return r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"external_id", "last_synced"}),
	}).Create(&link).Error
}

func (r *SyncLinkRepository) UnlinkTask(ctx context.Context, taskID uint, provider models.Provider) error {
	return r.db.WithContext(ctx).
		Where("task_id = ? AND provider = ?", taskID, provider).
		Delete(&models.TaskSyncMetadata{}).Error
}

// TaskByExternalID resolves a remote task id to the user's local task, or nil.
func (r *SyncLinkRepository) TaskByExternalID(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Joins("JOIN task_sync_metadata ON task_sync_metadata.task_id = tasks.id").
		Where("tasks.user_id = ? AND task_sync_metadata.provider = ? AND task_sync_metadata.external_id = ?", userID, provider, externalID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *SyncLinkRepository) TaskLinks(ctx context.Context, userID uint, provider models.Provider) ([]models.TaskSyncMetadata, error) {
	var links []models.TaskSyncMetadata
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = task_sync_metadata.task_id").
		Where("tasks.user_id = ? AND task_sync_metadata.provider = ?", userID, provider).
		Order("task_sync_metadata.task_id ASC").
		Find(&links).Error
	return links, err
}

func (r *SyncLinkRepository) EventLink(ctx context.Context, eventID uint, provider models.Provider) (*models.EventSyncMetadata, error) {
	var link models.EventSyncMetadata
	err := r.db.WithContext(ctx).Where("event_id = ? AND provider = ?", eventID, provider).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *SyncLinkRepository) LinkEvent(ctx context.Context, eventID uint, provider models.Provider, externalID string, at time.Time) error {
	link := models.EventSyncMetadata{EventID: eventID, Provider: provider, ExternalID: externalID, LastSynced: at.UTC()}
	return r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"external_id", "last_synced"}),
	}).Create(&link).Error
}

func (r *SyncLinkRepository) UnlinkEvent(ctx context.Context, eventID uint, provider models.Provider) error {
	return r.db.WithContext(ctx).
		Where("event_id = ? AND provider = ?", eventID, provider).
		Delete(&models.EventSyncMetadata{}).Error
}

func (r *SyncLinkRepository) EventByExternalID(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Joins("JOIN event_sync_metadata ON event_sync_metadata.event_id = events.id").
		Where("events.user_id = ? AND event_sync_metadata.provider = ? AND event_sync_metadata.external_id = ?", userID, provider, externalID).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *SyncLinkRepository) EventLinks(ctx context.Context, userID uint, provider models.Provider) ([]models.EventSyncMetadata, error) {
	var links []models.EventSyncMetadata
	err := r.db.WithContext(ctx).
		Joins("JOIN events ON events.id = event_sync_metadata.event_id").
		Where("events.user_id = ? AND event_sync_metadata.provider = ?", userID, provider).
		Order("event_sync_metadata.event_id ASC").
		Find(&links).Error
	return links, err
}
