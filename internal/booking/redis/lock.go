package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"furgocasa/internal/logger"
)

// Redis serializes booking writes per vehicle. A lock is held only for
// the duration of the check-then-insert window; the database exclusion
// constraint remains the final arbiter.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{
		Client: client,
		Logger: log,
	}
}

// getVehicleLockDuration returns the lock TTL from the environment or
// the default value.
func (r *Redis) getVehicleLockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	lockTTLStr := os.Getenv("VEHICLE_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Warn("REDIS", "Invalid VEHICLE_LOCK_TTL_SECONDS value '"+lockTTLStr+"', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockVehicle takes the per-vehicle lock for one booking attempt. The
// TTL is a safety net against a crashed holder.
func (r *Redis) LockVehicle(ctx context.Context, vehicleID, bookingID string) (bool, error) {
	key := "vehicle_lock:" + vehicleID
	ok, err := r.Client.SetNX(ctx, key, bookingID, r.getVehicleLockDuration()).Result()
	if err != nil {
		return false, err
	}
	if ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("Locked vehicle %s for booking %s", vehicleID, bookingID))
	}
	return ok, nil
}

// UnlockVehicle releases the lock, but only if this booking still owns
// it. A lock that expired and was re-taken by another attempt is left
// alone.
func (r *Redis) UnlockVehicle(ctx context.Context, vehicleID, bookingID string) error {
	key := "vehicle_lock:" + vehicleID

	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == bookingID {
		_, err := r.Client.Del(ctx, key).Result()
		if err == nil {
			r.Logger.Debug("REDIS", fmt.Sprintf("Unlocked vehicle %s for booking %s", vehicleID, bookingID))
		}
		return err
	}
	return nil
}

// IsVehicleLocked reports whether another booking attempt currently
// holds the vehicle, without taking the lock.
func (r *Redis) IsVehicleLocked(ctx context.Context, vehicleID string) (bool, error) {
	key := "vehicle_lock:" + vehicleID
	_, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
