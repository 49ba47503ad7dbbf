package repositories

import (
	"context"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SyncStatusRepository struct {
	db *gorm.DB
}

func NewSyncStatusRepository(db *gorm.DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

// Set records the sync state; lastSynced is only written when non-nil.
func (r *SyncStatusRepository) Set(ctx context.Context, userID uint, provider models.Provider, state models.SyncState, syncErr string, lastSynced *time.Time) error {
	row := models.CalendarSync{
		UserID:     userID,
		Provider:   provider,
		Status:     state,
		SyncError:  syncErr,
		LastSynced: lastSynced,
	}
	columns := []string{"status", "sync_error", "updated_at"}
	if lastSynced != nil {
		columns = append(columns, "last_synced")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error
}

func (r *SyncStatusRepository) List(ctx context.Context, userID uint) ([]models.CalendarSync, error) {
	var rows []models.CalendarSync
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("provider ASC").Find(&rows).Error
	return rows, err
}

// InteractionRepository stores assistant exchanges.
type InteractionRepository struct {
	db *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) Create(ctx context.Context, interaction *models.AssistantInteraction) error {
	return r.db.WithContext(ctx).Create(interaction).Error
}

func (r *InteractionRepository) List(ctx context.Context, userID uint) ([]models.AssistantInteraction, error) {
	var rows []models.AssistantInteraction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *InteractionRepository) Get(ctx context.Context, userID, id uint) (*models.AssistantInteraction, error) {
	var row models.AssistantInteraction
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("interaction", id)
	}
	return &row, nil
}

func (r *InteractionRepository) Delete(ctx context.Context, userID, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.AssistantInteraction{})
	return res.RowsAffected > 0, res.Error
}
