package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"
	"planner/backend/internal/repositories"

	"golang.org/x/oauth2"
)

// Builder turns a stored OAuth token into a live provider client.
type Builder func(ctx context.Context, token *oauth2.Token) (Provider, error)

// Connector resolves a provider client for a user.
type Connector interface {
	Connect(ctx context.Context, userID uint, provider models.Provider) (Provider, error)
}

// Registry is the production Connector: tokens come from the store and each
// provider has its own Builder.
type Registry struct {
	tokens   *repositories.TokenRepository
	builders map[models.Provider]Builder
	logger   *slog.Logger
	now      func() time.Time
}

func NewRegistry(tokens *repositories.TokenRepository, builders map[models.Provider]Builder, logger *slog.Logger) *Registry {
	return &Registry{
		tokens:   tokens,
		builders: builders,
		logger:   logger.With("component", "providers"),
		now:      time.Now,
	}
}

func (r *Registry) Connect(ctx context.Context, userID uint, provider models.Provider) (Provider, error) {
	build, ok := r.builders[provider]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured: %w", provider, apperrors.ErrNotConnected)
	}
	stored, err := r.tokens.Get(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}
	if !token.Valid() && token.RefreshToken == "" {
		r.logger.Info("provider token expired", "user_id", userID, "provider", provider)
		return nil, apperrors.ErrNotConnected
	}
	return build(ctx, token)
}

// Connection summarises whether a usable token is stored.
type Connection struct {
	Provider  models.Provider `json:"provider"`
	Connected bool            `json:"connected"`
	Expired   bool            `json:"expired"`
	Expiry    *time.Time      `json:"expiry,omitempty"`
}

func (r *Registry) Check(ctx context.Context, userID uint, provider models.Provider) (Connection, error) {
	conn := Connection{Provider: provider}
	stored, err := r.tokens.Get(ctx, userID, provider)
	if errors.Is(err, apperrors.ErrNotConnected) {
		return conn, nil
	}
	if err != nil {
		return conn, err
	}
	conn.Connected = true
	if !stored.Expiry.IsZero() {
		expiry := stored.Expiry
		conn.Expiry = &expiry
		conn.Expired = expiry.Before(r.now()) && stored.RefreshToken == ""
		conn.Connected = !conn.Expired
	}
	return conn, nil
}

func (r *Registry) Store(ctx context.Context, token *models.ProviderToken) error {
	if _, ok := r.builders[token.Provider]; !ok {
		verr := apperrors.NewValidationError()
		verr.Add("provider", fmt.Sprintf("provider %q is not configured", token.Provider))
		return verr
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	return r.tokens.Upsert(ctx, token)
}

func (r *Registry) Disconnect(ctx context.Context, userID uint, provider models.Provider) (bool, error) {
	return r.tokens.Delete(ctx, userID, provider)
}
