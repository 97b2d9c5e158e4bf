package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"furgocasa/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func NewDB(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// ---------------- BOOKINGS ----------------

// CreateBooking inserts a new booking. When the exclusion constraint
// on (vehicle_id, rental daterange) rejects the row, the database-level
// conflict is surfaced as a ConflictError so callers treat it exactly
// like a failed availability check.
func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(booking).Exec(ctx)
	if err != nil && isExclusionViolation(err) {
		return &models.ConflictError{
			VehicleID: booking.VehicleID,
			Conflicts: []models.Conflict{{
				Kind:      "booking",
				StartDate: booking.PickupDate,
				EndDate:   booking.DropoffDate,
			}},
		}
	}
	return err
}

func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_number = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus moves a booking to a new status. The current
// status is part of the WHERE clause, so a concurrent transition makes
// this a no-op instead of a lost update; callers check the returned
// count.
func (d *DB) UpdateBookingStatus(ctx context.Context, id, fromStatus, toStatus string) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", toStatus).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", fromStatus).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) ListBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListConfirmedDueForPickup returns confirmed bookings whose pickup
// date has arrived, for the scheduler to activate.
func (d *DB) ListConfirmedDueForPickup(ctx context.Context, now time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", models.BookingConfirmed).
		Where("pickup_date <= ?", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListActivePastDropoff returns active bookings whose dropoff date has
// passed, for the scheduler to complete.
func (d *DB) ListActivePastDropoff(ctx context.Context, now time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", models.BookingActive).
		Where("dropoff_date < ?", now).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ---------------- VEHICLES ----------------

func (d *DB) GetVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := d.Bun.NewSelect().
		Model(&vehicle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// isExclusionViolation detects Postgres error 23P01, raised by the
// daterange exclusion constraint on bookings.
func isExclusionViolation(err error) bool {
	pgErr, ok := err.(pgdriver.Error)
	if !ok {
		return false
	}
	return pgErr.Field('C') == "23P01"
}
