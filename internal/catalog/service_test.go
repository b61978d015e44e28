package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcraft/cabinetry-backend/internal/testdb"
	pkgerrors "github.com/northcraft/cabinetry-backend/pkg/errors"
)

func baseCabinet(name string) CabinetTypeInput {
	return CabinetTypeInput{
		Name:            name,
		Category:        "base",
		BasePrice:       decimal.RequireFromString("120"),
		MaterialRate:    decimal.RequireFromString("85"),
		DoorCount:       2,
		DefaultWidthMM:  600,
		MinWidthMM:      300,
		MaxWidthMM:      1200,
		DefaultHeightMM: 720,
		MinHeightMM:     600,
		MaxHeightMM:     900,
		DefaultDepthMM:  560,
		MinDepthMM:      300,
		MaxDepthMM:      600,
	}
}

func newCatalog(t *testing.T, cache snapshotCache) (Service, *Reader) {
	t.Helper()
	repo := NewRepository(testdb.Open(t))
	reader := NewReader(repo, cache, time.Minute, nil)
	svc, err := NewService(repo, reader)
	require.NoError(t, err)
	return svc, reader
}

func TestCreateCabinetTypeValidatesRanges(t *testing.T) {
	svc, _ := newCatalog(t, nil)
	input := baseCabinet("Base 600")
	input.MinWidthMM = 700

	_, err := svc.CreateCabinetType(context.Background(), input)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestCreateCabinetTypeRejectsDuplicateName(t *testing.T) {
	svc, _ := newCatalog(t, nil)
	ctx := context.Background()

	created, err := svc.CreateCabinetType(ctx, baseCabinet("Base 600"))
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, "120", created.BasePrice.String())

	_, err = svc.CreateCabinetType(ctx, baseCabinet("Base 600"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
}

func TestDeactivateHidesFromPublicList(t *testing.T) {
	svc, reader := newCatalog(t, nil)
	ctx := context.Background()

	created, err := svc.CreateDoorStyle(ctx, RateInput{Name: "Shaker", Rate: decimal.RequireFromString("95")})
	require.NoError(t, err)

	public, err := svc.ListDoorStyles(ctx, false)
	require.NoError(t, err)
	require.Len(t, public, 1)

	require.NoError(t, svc.DeleteDoorStyle(ctx, created.ID))

	public, err = svc.ListDoorStyles(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, public)

	all, err := svc.ListDoorStyles(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	found, err := reader.DoorStyle(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	err = svc.DeleteDoorStyle(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestUpdateProductionOptionUppercasesCode(t *testing.T) {
	svc, _ := newCatalog(t, nil)
	ctx := context.Background()

	created, err := svc.CreateProductionOption(ctx, ProductionOptionInput{Code: "edge", Name: "Edge banding", Price: decimal.RequireFromString("15")})
	require.NoError(t, err)
	assert.Equal(t, "EDGE", created.Code)

	updated, err := svc.UpdateProductionOption(ctx, created.ID, ProductionOptionInput{Code: "edge-abs", Name: "ABS edge", Price: decimal.RequireFromString("18.5")})
	require.NoError(t, err)
	assert.Equal(t, "EDGE-ABS", updated.Code)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("18.5")))
}

func TestReaderCachesSnapshotAndInvalidatesOnWrite(t *testing.T) {
	cache := newMemoryCache()
	svc, reader := newCatalog(t, cache)
	ctx := context.Background()

	color, err := svc.CreateColor(ctx, RateInput{Name: "Oak", Rate: decimal.RequireFromString("20")})
	require.NoError(t, err)

	found, err := reader.Color(ctx, color.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, cache.sets)

	_, err = reader.Color(ctx, color.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second read should hit the cache")

	_, err = svc.UpdateColor(ctx, color.ID, RateInput{Name: "Oak", Rate: decimal.RequireFromString("25")})
	require.NoError(t, err)

	found, err = reader.Color(ctx, color.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Rate.Equal(decimal.RequireFromString("25")))
	assert.Equal(t, 2, cache.sets)
}

type memoryCache struct {
	values map[string]string
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	m.sets++
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	key := "cab:cache"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
