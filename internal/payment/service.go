package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
	"furgocasa/internal/payment/gateway"
	"furgocasa/internal/payment/storage"
	"furgocasa/internal/utils"
)

const gatewayTimeout = 15 * time.Second

// Orchestrator sits between the HTTP layer and the gateways. Every
// attempt gets a pending payment row before the gateway is called, so
// a checkout that never comes back still leaves a visible trace.
type Orchestrator struct {
	Store    storage.Store
	Gateways map[string]gateway.PaymentGateway
	Log      *logger.Logger
}

func NewOrchestrator(store storage.Store, gateways map[string]gateway.PaymentGateway, log *logger.Logger) *Orchestrator {
	return &Orchestrator{Store: store, Gateways: gateways, Log: log}
}

// InitiatePayment opens a checkout for part or all of a booking's
// outstanding balance.
func (o *Orchestrator) InitiatePayment(ctx context.Context, req models.PaymentRequest) (*models.CheckoutSession, *models.Payment, error) {
	gw, ok := o.Gateways[req.Gateway]
	if !ok {
		return nil, nil, &models.ValidationError{Field: "gateway", Message: "unknown payment gateway"}
	}

	booking, err := o.Store.GetBookingSummary(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, &models.ValidationError{Field: "booking_id", Message: "unknown booking"}
		}
		return nil, nil, err
	}
	if booking.Status == models.BookingCancelled || booking.Status == models.BookingCompleted {
		return nil, nil, &models.PolicyViolation{Rule: "lifecycle", Message: "booking no longer accepts payments"}
	}

	outstanding := math.Round((booking.TotalAmount-booking.AmountPaid)*100) / 100
	if outstanding <= 0 {
		return nil, nil, &models.PolicyViolation{Rule: "payment", Message: "booking is already fully paid"}
	}

	kind := req.Kind
	if kind == "" {
		kind = models.KindDeposit
	}
	if kind != models.KindDeposit && kind != models.KindFull && kind != models.KindPreauth {
		return nil, nil, &models.ValidationError{Field: "kind", Message: "must be deposit, full or preauth"}
	}

	amount := req.Amount
	if kind == models.KindFull {
		amount = outstanding
	}
	if amount <= 0 {
		return nil, nil, &models.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if amount > outstanding {
		return nil, nil, &models.ValidationError{Field: "amount",
			Message: fmt.Sprintf("exceeds outstanding balance of %.2f", outstanding)}
	}

	pmt := &models.Payment{
		ID:            utils.GeneratePaymentID(),
		BookingID:     booking.ID,
		OrderNumber:   utils.GenerateOrderNumber("FC"),
		Gateway:       gw.Name(),
		PaymentMethod: req.PaymentMethod,
		Amount:        amount,
		Currency:      "EUR",
		Status:        models.PaymentPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := o.Store.CreatePayment(ctx, pmt); err != nil {
		return nil, nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	session, err := gw.Initiate(gwCtx, gateway.InitiateRequest{
		OrderNumber:   pmt.OrderNumber,
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		Kind:          kind,
		Amount:        amount,
		CustomerEmail: booking.CustomerEmail,
		Description:   "Booking " + booking.BookingNumber,
	})
	if err != nil {
		// The pending row stays: a timed-out gateway call may still
		// have opened a session whose webhook will arrive later.
		o.Log.LogPayment("INITIATE_FAILED", pmt.OrderNumber, err.Error())
		return nil, nil, err
	}

	if session.SessionID != "" {
		if err := o.Store.SetGatewaySession(ctx, pmt.ID, session.SessionID); err != nil {
			o.Log.Warn("PAYMENT", fmt.Sprintf("Could not record gateway session for %s: %v", pmt.OrderNumber, err))
		}
		pmt.GatewaySessionID = session.SessionID
	}

	o.Log.LogPayment("INITIATE", pmt.OrderNumber,
		fmt.Sprintf("Booking %s via %s for %.2f EUR", booking.BookingNumber, gw.Name(), amount))

	return session, pmt, nil
}

// Reconcile applies a verified gateway event to its payment and
// booking. It is idempotent: replays and duplicate deliveries return
// ErrDuplicateNotification, which callers treat as success.
func (o *Orchestrator) Reconcile(ctx context.Context, event *gateway.Event) error {
	pmt, err := o.findPayment(ctx, event)
	if err != nil {
		return err
	}

	switch event.Type {
	case gateway.EventAuthorized:
		if event.Amount > 0 && math.Abs(event.Amount-pmt.Amount) >= 0.01 {
			o.Log.LogAudit("AMOUNT_MISMATCH",
				fmt.Sprintf("Order %s: gateway reported %.2f, payment holds %.2f", pmt.OrderNumber, event.Amount, pmt.Amount))
		}
		err := o.Store.ApplyAuthorizedPayment(ctx, pmt.ID, event.AuthorizationCode, event.ResponseCode)
		if err == nil {
			o.Log.LogPayment("AUTHORIZED", pmt.OrderNumber, fmt.Sprintf("%.2f EUR applied to booking %s", pmt.Amount, pmt.BookingID))
		}
		return err

	case gateway.EventCancelled:
		if pmt.Status != models.PaymentPending {
			return models.ErrDuplicateNotification
		}
		o.Log.LogPayment("CANCELLED", pmt.OrderNumber, "Shopper cancelled at the gateway")
		return o.Store.UpdatePaymentStatus(ctx, pmt.ID, models.PaymentCancelled, "cancelled at gateway")

	case gateway.EventFailed:
		if pmt.Status != models.PaymentPending {
			return models.ErrDuplicateNotification
		}
		o.Log.LogPayment("FAILED", pmt.OrderNumber, "Gateway declined, response code "+event.ResponseCode)
		return o.Store.UpdatePaymentStatus(ctx, pmt.ID, models.PaymentError, "declined with code "+event.ResponseCode)
	}

	return fmt.Errorf("unhandled gateway event type %q", event.Type)
}

// Refund reverses an authorized payment and debits the booking.
func (o *Orchestrator) Refund(ctx context.Context, paymentID, reason string) error {
	pmt, err := o.Store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return err
	}
	if pmt.Status != models.PaymentAuthorized {
		return &models.PolicyViolation{Rule: "refund", Message: "only authorized payments can be refunded"}
	}

	if err := o.Store.ApplyRefund(ctx, paymentID, reason); err != nil {
		return err
	}

	o.Log.LogPayment("REFUND", pmt.OrderNumber, reason)
	return nil
}

func (o *Orchestrator) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	pmt, err := o.Store.GetPaymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return pmt, nil
}

func (o *Orchestrator) ListPaymentsByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	return o.Store.ListPaymentsByBooking(ctx, bookingID)
}

func (o *Orchestrator) findPayment(ctx context.Context, event *gateway.Event) (*models.Payment, error) {
	if event.OrderNumber != "" {
		pmt, err := o.Store.GetPaymentByOrderNumber(ctx, event.OrderNumber)
		if err == nil {
			return pmt, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	if event.SessionID != "" {
		pmt, err := o.Store.GetPaymentBySessionID(ctx, event.SessionID)
		if err == nil {
			return pmt, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	o.Log.LogAudit("ORPHAN_NOTIFICATION",
		fmt.Sprintf("Gateway %s reported order %q session %q with no matching payment", event.Gateway, event.OrderNumber, event.SessionID))
	return nil, models.ErrNotFound
}
