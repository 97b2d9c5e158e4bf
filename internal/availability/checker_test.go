package availability

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	assert.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*models.Booking)(nil)).IfNotExists().Exec(ctx)
	assert.NoError(t, err)
	_, err = db.NewCreateTable().Model((*models.BlockedDate)(nil)).IfNotExists().Exec(ctx)
	assert.NoError(t, err)

	return db
}

func day(s string) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", s, time.UTC)
	return t
}

func insertBooking(t *testing.T, db *bun.DB, vehicleID, status, pickup, dropoff string) {
	booking := &models.Booking{
		ID:            "bk_" + pickup + "_" + vehicleID,
		BookingNumber: "FC-TEST-" + pickup,
		VehicleID:     vehicleID,
		CustomerEmail: "test@example.com",
		PickupDate:    day(pickup),
		DropoffDate:   day(dropoff),
		Days:          5,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
		TotalAmount:   500,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	_, err := db.NewInsert().Model(booking).Exec(context.Background())
	assert.NoError(t, err)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		aStart   string
		aEnd     string
		bStart   string
		bEnd     string
		expected bool
	}{
		{"disjoint before", "2026-07-01", "2026-07-05", "2026-07-06", "2026-07-10", false},
		{"disjoint after", "2026-07-11", "2026-07-15", "2026-07-06", "2026-07-10", false},
		{"shared endpoint", "2026-07-01", "2026-07-05", "2026-07-05", "2026-07-10", true},
		{"contained", "2026-07-07", "2026-07-08", "2026-07-06", "2026-07-10", true},
		{"surrounding", "2026-07-01", "2026-07-20", "2026-07-06", "2026-07-10", true},
		{"identical", "2026-07-06", "2026-07-10", "2026-07-06", "2026-07-10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(day(tt.aStart), day(tt.aEnd), day(tt.bStart), day(tt.bEnd))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCheckNoConflicts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	checker := NewChecker(db, logger.NewLogger())

	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.True(t, result.Available)
	assert.Empty(t, result.Conflicts)
}

func TestCheckBookingConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertBooking(t, db, "veh1", models.BookingConfirmed, "2026-07-14", "2026-07-20")

	checker := NewChecker(db, logger.NewLogger())

	// Dropoff on the 15th collides with a pickup-inclusive booking
	// starting the 14th.
	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Len(t, result.Conflicts, 1)
	assert.Equal(t, "booking", result.Conflicts[0].Kind)
}

func TestCheckSharedEndpointConflicts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertBooking(t, db, "veh1", models.BookingConfirmed, "2026-07-15", "2026-07-20")

	checker := NewChecker(db, logger.NewLogger())

	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.False(t, result.Available)
}

func TestCheckCancelledBookingDoesNotBlock(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertBooking(t, db, "veh1", models.BookingCancelled, "2026-07-10", "2026-07-15")

	checker := NewChecker(db, logger.NewLogger())

	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.True(t, result.Available)
}

func TestCheckPendingBookingBlocks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertBooking(t, db, "veh1", models.BookingPending, "2026-07-12", "2026-07-13")

	checker := NewChecker(db, logger.NewLogger())

	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.False(t, result.Available)
}

func TestCheckOtherVehicleDoesNotBlock(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertBooking(t, db, "veh2", models.BookingConfirmed, "2026-07-10", "2026-07-15")

	checker := NewChecker(db, logger.NewLogger())

	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.True(t, result.Available)
}

func TestCheckBlockedDateConflict(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	block := &models.BlockedDate{
		ID:        "blk1",
		VehicleID: "veh1",
		StartDate: day("2026-07-12"),
		EndDate:   day("2026-07-12"),
		Reason:    "maintenance",
		CreatedAt: time.Now(),
	}
	_, err := db.NewInsert().Model(block).Exec(context.Background())
	assert.NoError(t, err)

	checker := NewChecker(db, logger.NewLogger())

	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "")
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Len(t, result.Conflicts, 1)
	assert.Equal(t, "blocked", result.Conflicts[0].Kind)
}

func TestCheckExcludesOwnBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	insertBooking(t, db, "veh1", models.BookingConfirmed, "2026-07-10", "2026-07-15")

	checker := NewChecker(db, logger.NewLogger())

	// Re-checking a booking's own dates must not conflict with itself.
	result, err := checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "bk_2026-07-10_veh1")
	assert.NoError(t, err)
	assert.True(t, result.Available)

	// Excluding some other booking still reports the conflict.
	result, err = checker.Check(context.Background(), "veh1", day("2026-07-10"), day("2026-07-15"), "bk_other")
	assert.NoError(t, err)
	assert.False(t, result.Available)
}

func TestCheckRejectsInvertedRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	checker := NewChecker(db, logger.NewLogger())

	_, err := checker.Check(context.Background(), "veh1", day("2026-07-15"), day("2026-07-10"), "")
	assert.Error(t, err)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}
