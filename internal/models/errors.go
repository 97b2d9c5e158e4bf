package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateNotification marks a gateway callback that was already
// applied. Handlers treat it as success so gateways stop retrying.
var ErrDuplicateNotification = errors.New("notification already processed")

var ErrNotFound = errors.New("not found")

// ValidationError reports malformed or inconsistent request input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Conflict describes one existing reservation or block that overlaps
// the requested dates.
type Conflict struct {
	Kind      string    `json:"kind"` // "booking" or "blocked"
	Reference string    `json:"reference,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ConflictError reports that the requested date range is not
// available for the vehicle.
type ConflictError struct {
	VehicleID string
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("vehicle %s is not available for the requested dates (%d conflicts)", e.VehicleID, len(e.Conflicts))
}

// PolicyViolation reports a request that is well-formed but breaks a
// business rule, such as a stay shorter than the season minimum.
type PolicyViolation struct {
	Rule    string
	Message string
}

func (e *PolicyViolation) Error() string {
	return e.Message
}

// GatewayError wraps a failure talking to a payment provider. The
// public message is safe to return to clients; the internal error
// stays in the logs.
type GatewayError struct {
	Gateway  string
	Public   string
	Internal error
}

func (e *GatewayError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s gateway: %s: %v", e.Gateway, e.Public, e.Internal)
	}
	return fmt.Sprintf("%s gateway: %s", e.Gateway, e.Public)
}

func (e *GatewayError) Unwrap() error {
	return e.Internal
}
