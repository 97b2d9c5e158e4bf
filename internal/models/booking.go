package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Booking statuses. A booking starts as pending and moves forward
// through the rental lifecycle; cancelled is reachable from any
// non-terminal status.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingActive    = "active"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Payment progress on a booking, independent of its lifecycle status.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPartial  = "partial"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            string    `bun:"id,pk" json:"id"`
	BookingNumber string    `bun:"booking_number,notnull,unique" json:"booking_number"`
	VehicleID     string    `bun:"vehicle_id,notnull" json:"vehicle_id"`
	CustomerName  string    `bun:"customer_name" json:"customer_name"`
	CustomerEmail string    `bun:"customer_email,notnull" json:"customer_email"`
	CustomerPhone string    `bun:"customer_phone" json:"customer_phone"`
	PickupDate    time.Time `bun:"pickup_date,notnull" json:"pickup_date"`
	DropoffDate   time.Time `bun:"dropoff_date,notnull" json:"dropoff_date"`
	Days          int       `bun:"days,notnull" json:"days"`
	Status        string    `bun:"status,notnull" json:"status"`
	PaymentStatus string    `bun:"payment_status,notnull" json:"payment_status"`
	TotalAmount   float64   `bun:"total_amount,notnull" json:"total_amount"`
	DepositAmount float64   `bun:"deposit_amount" json:"deposit_amount"`
	AmountPaid    float64   `bun:"amount_paid,notnull" json:"amount_paid"`
	CouponCode    string    `bun:"coupon_code" json:"coupon_code,omitempty"`
	Discount      float64   `bun:"discount" json:"discount"`
	Notes         string    `bun:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at" json:"updated_at"`
}

// CanTransition reports whether a booking may move from one status to
// another. Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	switch from {
	case BookingPending:
		return to == BookingConfirmed || to == BookingCancelled
	case BookingConfirmed:
		return to == BookingActive || to == BookingCancelled
	case BookingActive:
		return to == BookingCompleted || to == BookingCancelled
	default:
		return false
	}
}

// IsTerminal reports whether a booking in this status can change no
// further.
func IsTerminal(status string) bool {
	return status == BookingCompleted || status == BookingCancelled
}

type BookingRequest struct {
	VehicleID     string `json:"vehicle_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	PickupDate    string `json:"pickup_date"`
	DropoffDate   string `json:"dropoff_date"`
	CouponCode    string `json:"coupon_code,omitempty"`
	Notes         string `json:"notes,omitempty"`
}
