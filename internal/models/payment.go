package models

import "time"

// Payment gateway identifiers.
const (
	GatewayRedsys = "redsys"
	GatewayStripe = "stripe"
)

// Payment kinds. A deposit collects part of the balance, full settles
// whatever is outstanding, and preauth places a hold to be captured
// later (Redsys transaction type 1, Stripe manual capture).
const (
	KindDeposit = "deposit"
	KindFull    = "full"
	KindPreauth = "preauth"
)

// Payment statuses. A payment is created pending when a checkout is
// initiated and settles to exactly one of the other states.
const (
	PaymentPending    = "pending"
	PaymentAuthorized = "authorized"
	PaymentError      = "error"
	PaymentCancelled  = "cancelled"
	PaymentRefunded   = "refunded"
)

// Payment is a single attempt to collect money for a booking through
// one of the gateways. OrderNumber is the gateway-facing identifier;
// Fee is the processing fee charged on top and never counts toward
// the booking's amount paid.
type Payment struct {
	ID                string    `json:"id"`
	BookingID         string    `json:"booking_id"`
	OrderNumber       string    `json:"order_number"`
	Gateway           string    `json:"gateway"`
	PaymentMethod     string    `json:"payment_method"`
	Amount            float64   `json:"amount"`
	Fee               float64   `json:"fee"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	GatewaySessionID  string    `json:"gateway_session_id,omitempty"`
	AuthorizationCode string    `json:"authorization_code,omitempty"`
	ResponseCode      string    `json:"response_code,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type PaymentRequest struct {
	BookingID     string  `json:"booking_id"`
	Gateway       string  `json:"gateway"`
	Kind          string  `json:"kind,omitempty"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

// CheckoutSession is what the gateway hands back to the client: either
// a URL to redirect to (Stripe) or a form to auto-submit (Redsys).
type CheckoutSession struct {
	Gateway     string            `json:"gateway"`
	OrderNumber string            `json:"order_number"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	FormURL     string            `json:"form_url,omitempty"`
	FormFields  map[string]string `json:"form_fields,omitempty"`
	SessionID   string            `json:"session_id,omitempty"`
}
