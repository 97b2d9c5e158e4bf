package storage

import (
	"context"

	"furgocasa/internal/models"
)

// Store persists payment attempts and applies their outcomes to the
// owning booking. ApplyAuthorizedPayment and ApplyRefund are atomic:
// the payment row and the booking's amount_paid move together.
type Store interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByOrderNumber(ctx context.Context, orderNumber string) (*models.Payment, error)
	GetPaymentBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id, status, notes string) error
	SetGatewaySession(ctx context.Context, id, sessionID string) error
	ApplyAuthorizedPayment(ctx context.Context, paymentID, authorizationCode, responseCode string) error
	ApplyRefund(ctx context.Context, paymentID, notes string) error
	GetBookingSummary(ctx context.Context, bookingID string) (*BookingSummary, error)
}

// BookingSummary is the slice of the booking the orchestrator needs:
// enough to price a deposit and to report reconciliation outcomes.
type BookingSummary struct {
	ID            string
	BookingNumber string
	CustomerEmail string
	Status        string
	PaymentStatus string
	TotalAmount   float64
	AmountPaid    float64
}
