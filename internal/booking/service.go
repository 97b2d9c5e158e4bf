package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"furgocasa/internal/availability"
	"furgocasa/internal/coupon"
	"furgocasa/internal/logger"
	"furgocasa/internal/models"
	"furgocasa/internal/pricing"
	"furgocasa/internal/utils"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, fromStatus, toStatus string) (int64, error)
	ListBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error)
	GetVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
}

type VehicleLock interface {
	LockVehicle(ctx context.Context, vehicleID, bookingID string) (bool, error)
	UnlockVehicle(ctx context.Context, vehicleID, bookingID string) error
}

type AvailabilityChecker interface {
	Check(ctx context.Context, vehicleID string, pickup, dropoff time.Time, excludeBookingID string) (*availability.Result, error)
}

type Quoter interface {
	Quote(ctx context.Context, vehicleID string, pickup, dropoff time.Time) (*pricing.Quote, error)
}

type CouponValidator interface {
	Validate(ctx context.Context, req coupon.Request) (*coupon.Result, error)
	Redeem(ctx context.Context, couponID string) error
}

type KafkaPublisher interface {
	PublishBookingCreated(booking models.Booking) error
	PublishBookingStatusChanged(booking models.Booking, previous string) error
}

type Service struct {
	DB           DBLayer
	Redis        VehicleLock
	Availability AvailabilityChecker
	Pricing      Quoter
	Coupons      CouponValidator
	Kafka        KafkaPublisher
	Log          *logger.Logger
}

func NewService(db DBLayer, redis VehicleLock, avail AvailabilityChecker, quoter Quoter, coupons CouponValidator, kafka KafkaPublisher, log *logger.Logger) *Service {
	return &Service{
		DB:           db,
		Redis:        redis,
		Availability: avail,
		Pricing:      quoter,
		Coupons:      coupons,
		Kafka:        kafka,
		Log:          log,
	}
}

// CreateBooking runs the whole reservation flow: validate the request,
// price the stay, apply the coupon, then take the per-vehicle lock,
// re-check availability inside it and insert the pending booking.
func (s *Service) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if req.VehicleID == "" {
		return nil, &models.ValidationError{Field: "vehicle_id", Message: "is required"}
	}
	if req.CustomerEmail == "" || !strings.Contains(req.CustomerEmail, "@") {
		return nil, &models.ValidationError{Field: "customer_email", Message: "must be a valid email address"}
	}

	pickup, err := utils.ParseDate(req.PickupDate)
	if err != nil {
		return nil, &models.ValidationError{Field: "pickup_date", Message: err.Error()}
	}
	dropoff, err := utils.ParseDate(req.DropoffDate)
	if err != nil {
		return nil, &models.ValidationError{Field: "dropoff_date", Message: err.Error()}
	}
	if !dropoff.After(pickup) {
		return nil, &models.ValidationError{Field: "dropoff_date", Message: "must be after pickup_date"}
	}

	vehicle, err := s.DB.GetVehicleByID(ctx, req.VehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.ValidationError{Field: "vehicle_id", Message: "unknown vehicle"}
		}
		return nil, err
	}
	if !vehicle.Active {
		return nil, &models.ValidationError{Field: "vehicle_id", Message: "vehicle is not available for rental"}
	}

	quote, err := s.Pricing.Quote(ctx, req.VehicleID, pickup, dropoff)
	if err != nil {
		return nil, err
	}
	if quote.Days < quote.MinDays {
		return nil, &models.PolicyViolation{
			Rule:    "min_days",
			Message: fmt.Sprintf("this period requires a minimum stay of %d days", quote.MinDays),
		}
	}

	booking := &models.Booking{
		ID:            uuid.New().String(),
		BookingNumber: utils.GenerateBookingNumber("FC"),
		VehicleID:     req.VehicleID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PickupDate:    pickup,
		DropoffDate:   dropoff,
		Days:          quote.Days,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentStatusPending,
		TotalAmount:   quote.Total,
		DepositAmount: quote.Deposit,
		Notes:         req.Notes,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	var couponID string
	if req.CouponCode != "" {
		result, err := s.Coupons.Validate(ctx, coupon.Request{
			Code:        req.CouponCode,
			PickupDate:  pickup,
			DropoffDate: dropoff,
			Days:        quote.Days,
			Total:       quote.Total,
		})
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, &models.PolicyViolation{Rule: "coupon_" + result.Reason, Message: result.Message}
		}
		booking.CouponCode = result.Coupon.Code
		booking.Discount = result.Discount
		booking.TotalAmount = math.Round((quote.Total-result.Discount)*100) / 100
		couponID = result.Coupon.ID
	}

	// Serialize the check-then-insert window per vehicle.
	locked, err := s.Redis.LockVehicle(ctx, req.VehicleID, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("vehicle lock error: %w", err)
	}
	if !locked {
		return nil, &models.ConflictError{VehicleID: req.VehicleID}
	}
	defer func() {
		if unlockErr := s.Redis.UnlockVehicle(ctx, req.VehicleID, booking.ID); unlockErr != nil {
			s.Log.Warn("BOOKING", fmt.Sprintf("Failed to release vehicle lock for %s: %v", req.VehicleID, unlockErr))
		}
	}()

	// Re-check under the lock; the earlier quote may have raced
	// another booking.
	availResult, err := s.Availability.Check(ctx, req.VehicleID, pickup, dropoff, booking.ID)
	if err != nil {
		return nil, err
	}
	if !availResult.Available {
		return nil, &models.ConflictError{VehicleID: req.VehicleID, Conflicts: availResult.Conflicts}
	}

	if err := s.DB.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	if couponID != "" {
		if err := s.Coupons.Redeem(ctx, couponID); err != nil {
			// The booking stands; the redemption shortfall is an
			// operational problem, not the customer's.
			s.Log.LogAudit("COUPON_REDEEM_FAILED",
				fmt.Sprintf("Booking %s created but coupon %s was not redeemed: %v", booking.BookingNumber, booking.CouponCode, err))
		}
	}

	s.Log.LogBooking("CREATE", booking.BookingNumber,
		fmt.Sprintf("Vehicle %s %s..%s total %.2f", booking.VehicleID, req.PickupDate, req.DropoffDate, booking.TotalAmount))

	if s.Kafka != nil {
		if err := s.Kafka.PublishBookingCreated(*booking); err != nil {
			s.Log.Warn("KAFKA", fmt.Sprintf("Publish error (booking created): %v", err))
		}
	}

	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (s *Service) ListBookingsByEmail(ctx context.Context, email string) ([]models.Booking, error) {
	return s.DB.ListBookingsByEmail(ctx, email)
}

// Transition moves a booking along its lifecycle. Illegal moves are
// rejected before touching the database; a concurrent transition
// surfaces as a conflict because the status update is conditional on
// the previous status.
func (s *Service) Transition(ctx context.Context, id, toStatus string) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(booking.Status, toStatus) {
		return nil, &models.PolicyViolation{
			Rule:    "lifecycle",
			Message: fmt.Sprintf("cannot move booking from %s to %s", booking.Status, toStatus),
		}
	}

	rows, err := s.DB.UpdateBookingStatus(ctx, id, booking.Status, toStatus)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, &models.PolicyViolation{
			Rule:    "lifecycle",
			Message: "booking status changed concurrently, retry",
		}
	}

	previous := booking.Status
	booking.Status = toStatus
	booking.UpdatedAt = time.Now()

	s.Log.LogBooking("TRANSITION", booking.BookingNumber, fmt.Sprintf("%s -> %s", previous, toStatus))

	if s.Kafka != nil {
		if err := s.Kafka.PublishBookingStatusChanged(*booking, previous); err != nil {
			s.Log.Warn("KAFKA", fmt.Sprintf("Publish error (status changed): %v", err))
		}
	}

	return booking, nil
}

// Cancel moves a booking to cancelled from any non-terminal status,
// freeing its dates.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	return s.Transition(ctx, id, models.BookingCancelled)
}
