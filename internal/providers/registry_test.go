package providers_test

import (
	"context"
	"testing"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/database"
	"planner/backend/internal/logging"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"
	"planner/backend/internal/providers/providertest"
	"planner/backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*providers.Registry, *providertest.Fake) {
	t.Helper()
	pool, err := database.NewDatabasePool(database.SQLiteMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, pool.Migrate())
	t.Cleanup(func() { _ = pool.Close() })

	fake := providertest.New(models.ProviderGoogle)
	reg := providers.NewRegistry(repositories.NewTokenRepository(pool.DB), map[models.Provider]providers.Builder{
		models.ProviderGoogle: providertest.Builder(fake),
	}, logging.Discard())
	return reg, fake
}

func TestRegistry_ConnectWithoutTokenIsNotConnected(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Connect(context.Background(), 1, models.ProviderGoogle)

	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}

func TestRegistry_StoreAndConnect(t *testing.T) {
	reg, fake := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Store(ctx, &models.ProviderToken{
		UserID:      1,
		Provider:    models.ProviderGoogle,
		AccessToken: "access",
		Expiry:      time.Now().Add(time.Hour),
	}))

	p, err := reg.Connect(ctx, 1, models.ProviderGoogle)
	require.NoError(t, err)
	assert.Same(t, fake, p)

	conn, err := reg.Check(ctx, 1, models.ProviderGoogle)
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	assert.False(t, conn.Expired)
}

func TestRegistry_ExpiredTokenWithoutRefresh(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Store(ctx, &models.ProviderToken{
		UserID:      1,
		Provider:    models.ProviderGoogle,
		AccessToken: "access",
		Expiry:      time.Now().Add(-time.Hour),
	}))

	_, err := reg.Connect(ctx, 1, models.ProviderGoogle)
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)

	conn, err := reg.Check(ctx, 1, models.ProviderGoogle)
	require.NoError(t, err)
	assert.True(t, conn.Expired)
	assert.False(t, conn.Connected)
}

func TestRegistry_UnconfiguredProvider(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	err := reg.Store(ctx, &models.ProviderToken{UserID: 1, Provider: models.ProviderOutlook, AccessToken: "a"})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "provider")

	_, err = reg.Connect(ctx, 1, models.ProviderOutlook)
	assert.Error(t, err)
}

func TestRegistry_Disconnect(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	require.NoError(t, reg.Store(ctx, &models.ProviderToken{UserID: 1, Provider: models.ProviderGoogle, AccessToken: "a"}))

	removed, err := reg.Disconnect(ctx, 1, models.ProviderGoogle)
	require.NoError(t, err)
	assert.True(t, removed)

	conn, err := reg.Check(ctx, 1, models.ProviderGoogle)
	require.NoError(t, err)
	assert.False(t, conn.Connected)
}
