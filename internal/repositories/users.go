package repositories

import (
	"context"
	"errors"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findBy(ctx, "username = ?", username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findBy(ctx, "email = ?", email)
}

func (r *UserRepository) findBy(ctx context.Context, cond string, value any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(cond, value).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("user", value)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// TokenRepository stores provider OAuth tokens per user.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Get(ctx context.Context, userID uint, provider models.Provider) (*models.ProviderToken, error) {
	var token models.ProviderToken
	err := r.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotConnected
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *TokenRepository) Upsert(ctx context.Context, token *models.ProviderToken) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "token_type", "expiry", "updated_at"}),
	}).Create(token).Error
}

func (r *TokenRepository) Delete(ctx context.Context, userID uint, provider models.Provider) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).Delete(&models.ProviderToken{})
	return res.RowsAffected > 0, res.Error
}
