package gateway

import (
	"context"
	"net/http"

	"furgocasa/internal/models"
)

// EventType classifies what a gateway callback reports.
type EventType string

const (
	EventAuthorized EventType = "authorized"
	EventCancelled  EventType = "cancelled"
	EventFailed     EventType = "failed"
)

// Event is the gateway-neutral result of a verified callback. Amount
// is in euros.
type Event struct {
	Type              EventType
	Gateway           string
	OrderNumber       string
	SessionID         string
	Amount            float64
	AuthorizationCode string
	ResponseCode      string
}

// InitiateRequest is everything a gateway needs to start a checkout.
// Kind is one of the models.Kind* values; preauth asks the gateway
// for an authorization hold instead of an immediate charge.
type InitiateRequest struct {
	OrderNumber   string
	BookingID     string
	BookingNumber string
	Kind          string
	Amount        float64
	CustomerEmail string
	Description   string
}

// PaymentGateway abstracts the two providers. Initiate opens a
// checkout and returns what the client needs to proceed (a redirect
// URL or a signed form). VerifyCallback authenticates an incoming
// notification and turns it into an Event; an invalid signature is an
// error, everything else is an Event even when the payment failed.
type PaymentGateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*models.CheckoutSession, error)
	VerifyCallback(r *http.Request) (*Event, error)
}
