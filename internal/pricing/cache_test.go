package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

type countingSource struct {
	seasons []models.Season
	calls   int
}

func (s *countingSource) SeasonsFor(ctx context.Context, vehicleID string, from, to time.Time) ([]models.Season, error) {
	s.calls++
	return s.seasons, nil
}

func setupCache(t *testing.T, source SeasonSource) (*SeasonCache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewSeasonCache(client, source, 5*time.Minute, logger.NewLogger())
	return cache, mr
}

func TestSeasonCacheReadThrough(t *testing.T) {
	source := &countingSource{seasons: []models.Season{highSeason()}}
	cache, mr := setupCache(t, source)
	defer mr.Close()

	ctx := context.Background()

	seasons, err := cache.SeasonsFor(ctx, "veh1", day("2026-07-10"), day("2026-07-15"))
	assert.NoError(t, err)
	assert.Len(t, seasons, 1)
	assert.Equal(t, 1, source.calls)

	// Second read is served from redis.
	seasons, err = cache.SeasonsFor(ctx, "veh1", day("2026-07-10"), day("2026-07-15"))
	assert.NoError(t, err)
	assert.Len(t, seasons, 1)
	assert.Equal(t, 1, source.calls)
}

func TestSeasonCacheFiltersRange(t *testing.T) {
	source := &countingSource{seasons: []models.Season{highSeason()}}
	cache, mr := setupCache(t, source)
	defer mr.Close()

	seasons, err := cache.SeasonsFor(context.Background(), "veh1", day("2026-01-10"), day("2026-01-15"))
	assert.NoError(t, err)
	assert.Empty(t, seasons)
}

func TestSeasonCacheExpiry(t *testing.T) {
	source := &countingSource{seasons: []models.Season{highSeason()}}
	cache, mr := setupCache(t, source)
	defer mr.Close()

	ctx := context.Background()

	_, err := cache.SeasonsFor(ctx, "veh1", day("2026-07-10"), day("2026-07-15"))
	assert.NoError(t, err)

	mr.FastForward(10 * time.Minute)

	_, err = cache.SeasonsFor(ctx, "veh1", day("2026-07-10"), day("2026-07-15"))
	assert.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestSeasonCacheInvalidate(t *testing.T) {
	source := &countingSource{seasons: []models.Season{highSeason()}}
	cache, mr := setupCache(t, source)
	defer mr.Close()

	ctx := context.Background()

	_, err := cache.SeasonsFor(ctx, "veh1", day("2026-07-10"), day("2026-07-15"))
	assert.NoError(t, err)

	assert.NoError(t, cache.Invalidate(ctx, "veh1"))

	_, err = cache.SeasonsFor(ctx, "veh1", day("2026-07-10"), day("2026-07-15"))
	assert.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}
