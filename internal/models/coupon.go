package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Coupon is a discount code. MaxUses of zero means unlimited
// redemptions. ValidFrom/ValidUntil bound when the code may be used;
// StayFrom/StayUntil, when set, bound the rental dates themselves.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID           string     `bun:"id,pk" json:"id"`
	Code         string     `bun:"code,notnull,unique" json:"code"`
	Description  string     `bun:"description" json:"description"`
	DiscountType string     `bun:"discount_type,notnull" json:"discount_type"`
	Value        float64    `bun:"value,notnull" json:"value"`
	ValidFrom    time.Time  `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil   time.Time  `bun:"valid_until,notnull" json:"valid_until"`
	StayFrom     *time.Time `bun:"stay_from" json:"stay_from,omitempty"`
	StayUntil    *time.Time `bun:"stay_until" json:"stay_until,omitempty"`
	MaxUses      int        `bun:"max_uses" json:"max_uses"`
	CurrentUses  int        `bun:"current_uses" json:"current_uses"`
	MinDays      int        `bun:"min_days" json:"min_days"`
	MinAmount    float64    `bun:"min_amount" json:"min_amount"`
	Active       bool       `bun:"active" json:"active"`
	CreatedAt    time.Time  `bun:"created_at" json:"created_at"`
}

// DiscountFor computes the discount amount this coupon grants against
// a rental total, rounded to cents and never exceeding the total
// itself.
func (c *Coupon) DiscountFor(total float64) float64 {
	var discount float64
	switch c.DiscountType {
	case DiscountPercentage:
		discount = math.Round(total*c.Value) / 100
	case DiscountFixed:
		discount = c.Value
	}
	if discount > total {
		discount = total
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
