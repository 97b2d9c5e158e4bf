package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BlockedDate is a maintenance or manual hold on a vehicle. Blocked
// ranges make the vehicle unavailable exactly like a booking does.
type BlockedDate struct {
	bun.BaseModel `bun:"table:blocked_dates"`

	ID        string    `bun:"id,pk" json:"id"`
	VehicleID string    `bun:"vehicle_id,notnull" json:"vehicle_id"`
	StartDate time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate   time.Time `bun:"end_date,notnull" json:"end_date"`
	Reason    string    `bun:"reason" json:"reason"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
