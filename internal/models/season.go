package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Baseline nightly rates applied when a day falls outside every
// configured season. They correspond to the cheapest (low season)
// tier of the standard rate card.
const (
	BaselineRateShort     = 95.0 // stays under one week
	BaselineRateWeek      = 85.0 // 7-13 days
	BaselineRateFortnight = 75.0 // 14-20 days
	BaselineRateLong      = 65.0 // 21 days and over
)

// Season is a dated pricing band for a vehicle. Rates are per day and
// depend on the total length of the stay, not on how many days fall
// inside the season.
type Season struct {
	bun.BaseModel `bun:"table:seasons"`

	ID                 string    `bun:"id,pk" json:"id"`
	VehicleID          string    `bun:"vehicle_id,notnull" json:"vehicle_id"`
	Name               string    `bun:"name" json:"name"`
	StartDate          time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate            time.Time `bun:"end_date,notnull" json:"end_date"`
	PriceLessThanWeek  float64   `bun:"price_less_than_week" json:"price_less_than_week"`
	PriceOneWeek       float64   `bun:"price_one_week" json:"price_one_week"`
	PriceTwoWeeks      float64   `bun:"price_two_weeks" json:"price_two_weeks"`
	PriceThreeWeeks    float64   `bun:"price_three_weeks" json:"price_three_weeks"`
	MinDays            int       `bun:"min_days" json:"min_days"`
	Priority           int       `bun:"priority" json:"priority"`
	CreatedAt          time.Time `bun:"created_at" json:"created_at"`
}

// ContainsDate reports whether d falls inside the season, both
// endpoints included. Comparison is by calendar day.
func (s *Season) ContainsDate(d time.Time) bool {
	day := truncateDay(d)
	return !day.Before(truncateDay(s.StartDate)) && !day.After(truncateDay(s.EndDate))
}

// TierRate returns the per-day rate for a stay of totalDays, using
// the season's length-based tiers. A tier left unset (zero) falls
// back to the baseline rate for that tier.
func (s *Season) TierRate(totalDays int) float64 {
	var rate float64
	switch {
	case totalDays >= 21:
		rate = s.PriceThreeWeeks
	case totalDays >= 14:
		rate = s.PriceTwoWeeks
	case totalDays >= 7:
		rate = s.PriceOneWeek
	default:
		rate = s.PriceLessThanWeek
	}
	if rate <= 0 {
		return BaselineTierRate(totalDays)
	}
	return rate
}

// BaselineTierRate returns the fallback per-day rate for days not
// covered by any season.
func BaselineTierRate(totalDays int) float64 {
	switch {
	case totalDays >= 21:
		return BaselineRateLong
	case totalDays >= 14:
		return BaselineRateFortnight
	case totalDays >= 7:
		return BaselineRateWeek
	default:
		return BaselineRateShort
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
