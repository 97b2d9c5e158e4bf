package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

// Result is the outcome of an availability check for one vehicle and
// date range.
type Result struct {
	VehicleID   string            `json:"vehicle_id"`
	PickupDate  time.Time         `json:"pickup_date"`
	DropoffDate time.Time         `json:"dropoff_date"`
	Available   bool              `json:"available"`
	Conflicts   []models.Conflict `json:"conflicts,omitempty"`
}

// Checker answers whether a vehicle is free for a date range. Both
// endpoints count as occupied: a booking ending on the 14th conflicts
// with one starting on the 14th.
type Checker struct {
	DB  *bun.DB
	Log *logger.Logger
}

func NewChecker(db *bun.DB, log *logger.Logger) *Checker {
	return &Checker{DB: db, Log: log}
}

// Overlaps reports whether two inclusive date ranges share at least
// one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// Check looks up every booking and blocked range that overlaps the
// requested dates. Bookings in any status other than cancelled occupy
// their dates. A non-empty excludeBookingID leaves that booking out of
// the conflict set, so re-checking a booking's own dates (e.g. when
// amending it) does not collide with itself.
func (c *Checker) Check(ctx context.Context, vehicleID string, pickup, dropoff time.Time, excludeBookingID string) (*Result, error) {
	if !dropoff.After(pickup) {
		return nil, &models.ValidationError{Field: "dropoff_date", Message: "must be after pickup_date"}
	}

	result := &Result{
		VehicleID:   vehicleID,
		PickupDate:  pickup,
		DropoffDate: dropoff,
	}

	var bookings []models.Booking
	query := c.DB.NewSelect().
		Model(&bookings).
		Where("vehicle_id = ?", vehicleID).
		Where("status != ?", models.BookingCancelled).
		Where("pickup_date <= ?", dropoff).
		Where("dropoff_date >= ?", pickup)
	if excludeBookingID != "" {
		query = query.Where("id != ?", excludeBookingID)
	}
	err := query.Scan(ctx)
	if err != nil {
		c.Log.Error("AVAILABILITY", fmt.Sprintf("Failed to query bookings for vehicle %s: %v", vehicleID, err))
		return nil, err
	}

	for _, b := range bookings {
		result.Conflicts = append(result.Conflicts, models.Conflict{
			Kind:      "booking",
			Reference: b.BookingNumber,
			StartDate: b.PickupDate,
			EndDate:   b.DropoffDate,
		})
	}

	var blocks []models.BlockedDate
	err = c.DB.NewSelect().
		Model(&blocks).
		Where("vehicle_id = ?", vehicleID).
		Where("start_date <= ?", dropoff).
		Where("end_date >= ?", pickup).
		Scan(ctx)
	if err != nil {
		c.Log.Error("AVAILABILITY", fmt.Sprintf("Failed to query blocked dates for vehicle %s: %v", vehicleID, err))
		return nil, err
	}

	for _, bd := range blocks {
		result.Conflicts = append(result.Conflicts, models.Conflict{
			Kind:      "blocked",
			Reference: bd.Reason,
			StartDate: bd.StartDate,
			EndDate:   bd.EndDate,
		})
	}

	result.Available = len(result.Conflicts) == 0

	c.Log.Debug("AVAILABILITY", fmt.Sprintf("Vehicle %s %s..%s available=%v conflicts=%d",
		vehicleID, pickup.Format("2006-01-02"), dropoff.Format("2006-01-02"), result.Available, len(result.Conflicts)))

	return result, nil
}
