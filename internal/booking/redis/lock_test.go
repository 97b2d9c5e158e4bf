package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furgocasa/internal/logger"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	ctx := context.Background()
	err = client.Ping(ctx).Err()
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestLockVehicle(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewLogger())
	ctx := context.Background()

	locked, err := r.LockVehicle(ctx, "veh-1", "booking-123")
	require.NoError(t, err)
	assert.True(t, locked, "Should take a free lock")

	// A second attempt while held must fail.
	locked, err = r.LockVehicle(ctx, "veh-1", "booking-456")
	require.NoError(t, err)
	assert.False(t, locked, "Should not take a held lock")

	err = r.UnlockVehicle(ctx, "veh-1", "booking-123")
	require.NoError(t, err)

	locked, err = r.LockVehicle(ctx, "veh-1", "booking-789")
	require.NoError(t, err)
	assert.True(t, locked, "Should take the lock after release")
}

func TestUnlockVehicle_OnlyOwnerReleases(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewLogger())
	ctx := context.Background()

	locked, err := r.LockVehicle(ctx, "veh-1", "booking-1")
	require.NoError(t, err)
	assert.True(t, locked)

	// Release with the wrong owner must be a no-op.
	err = r.UnlockVehicle(ctx, "veh-1", "booking-2")
	require.NoError(t, err)

	held, err := r.IsVehicleLocked(ctx, "veh-1")
	require.NoError(t, err)
	assert.True(t, held, "Lock should survive a foreign unlock")

	val, err := client.Get(ctx, "vehicle_lock:veh-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "booking-1", val)

	err = r.UnlockVehicle(ctx, "veh-1", "booking-1")
	require.NoError(t, err)

	held, err = r.IsVehicleLocked(ctx, "veh-1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestUnlockVehicle_AlreadyReleased(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewLogger())

	err := r.UnlockVehicle(context.Background(), "veh-1", "booking-1")
	assert.NoError(t, err, "Unlocking a free lock is not an error")
}

func TestLockVehicle_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewLogger())
	ctx := context.Background()

	locked, err := r.LockVehicle(ctx, "veh-1", "booking-1")
	require.NoError(t, err)
	assert.True(t, locked)

	// A crashed holder's lock lapses after the TTL.
	mr.FastForward(1 * time.Minute)

	locked, err = r.LockVehicle(ctx, "veh-1", "booking-2")
	require.NoError(t, err)
	assert.True(t, locked, "Expired lock should be free")
}

func TestLockVehicle_ConcurrentAttempts(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := NewRedis(client, logger.NewLogger())
	ctx := context.Background()

	const numGoroutines = 20
	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()

			bookingID := fmt.Sprintf("booking-%d", attempt)
			locked, err := r.LockVehicle(ctx, "veh-contested", bookingID)

			if err == nil && locked {
				mu.Lock()
				successCount++
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)
				r.UnlockVehicle(ctx, "veh-contested", bookingID)
			}
		}(i)
	}

	wg.Wait()

	assert.Greater(t, successCount, 0, "At least one attempt should take the lock")
	t.Logf("Successful locks: %d out of %d attempts", successCount, numGoroutines)
}
