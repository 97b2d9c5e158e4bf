package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

const seasonCachePrefix = "season_cache:"

// DBSeasonSource loads a vehicle's seasons straight from the database.
type DBSeasonSource struct {
	DB *bun.DB
}

func (s *DBSeasonSource) SeasonsFor(ctx context.Context, vehicleID string, from, to time.Time) ([]models.Season, error) {
	var seasons []models.Season
	err := s.DB.NewSelect().
		Model(&seasons).
		Where("vehicle_id = ?", vehicleID).
		Where("start_date <= ?", to).
		Where("end_date >= ?", from).
		Order("priority DESC", "start_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return seasons, nil
}

// SeasonCache is a redis read-through in front of another
// SeasonSource. The whole calendar for a vehicle is cached under one
// key and filtered to the requested range in memory, so one miss
// serves every quote for that vehicle until the TTL runs out.
type SeasonCache struct {
	Client *redis.Client
	Source SeasonSource
	TTL    time.Duration
	Log    *logger.Logger
}

func NewSeasonCache(client *redis.Client, source SeasonSource, ttl time.Duration, log *logger.Logger) *SeasonCache {
	return &SeasonCache{Client: client, Source: source, TTL: ttl, Log: log}
}

func (c *SeasonCache) SeasonsFor(ctx context.Context, vehicleID string, from, to time.Time) ([]models.Season, error) {
	key := seasonCachePrefix + vehicleID

	cached, err := c.Client.Get(ctx, key).Result()
	if err == nil {
		var seasons []models.Season
		if jsonErr := json.Unmarshal([]byte(cached), &seasons); jsonErr == nil {
			return filterRange(seasons, from, to), nil
		}
		// Corrupt entry; fall through to reload
		c.Log.Warn("PRICING", fmt.Sprintf("Dropping unreadable season cache entry for vehicle %s", vehicleID))
	} else if err != redis.Nil {
		c.Log.Warn("PRICING", fmt.Sprintf("Season cache read failed for vehicle %s: %v", vehicleID, err))
	}

	// Cache the full calendar, not just the requested window.
	all, err := c.Source.SeasonsFor(ctx, vehicleID, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}

	if data, jsonErr := json.Marshal(all); jsonErr == nil {
		if setErr := c.Client.Set(ctx, key, data, c.TTL).Err(); setErr != nil {
			c.Log.Warn("PRICING", fmt.Sprintf("Season cache write failed for vehicle %s: %v", vehicleID, setErr))
		}
	}

	return filterRange(all, from, to), nil
}

// Invalidate drops the cached calendar for a vehicle, used when an
// admin edits its seasons.
func (c *SeasonCache) Invalidate(ctx context.Context, vehicleID string) error {
	return c.Client.Del(ctx, seasonCachePrefix+vehicleID).Err()
}

func filterRange(seasons []models.Season, from, to time.Time) []models.Season {
	var out []models.Season
	for _, s := range seasons {
		if !s.StartDate.After(to) && !s.EndDate.Before(from) {
			out = append(out, s)
		}
	}
	return out
}
