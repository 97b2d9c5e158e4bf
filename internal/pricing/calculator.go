package pricing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

// SeasonSource supplies the season calendar for a vehicle. Implemented
// by the database loader and by the redis read-through cache.
type SeasonSource interface {
	SeasonsFor(ctx context.Context, vehicleID string, from, to time.Time) ([]models.Season, error)
}

// SeasonShare is one season's slice of a quote.
type SeasonShare struct {
	SeasonID string  `json:"season_id,omitempty"`
	Name     string  `json:"name"`
	Days     int     `json:"days"`
	Rate     float64 `json:"rate"`
	Subtotal float64 `json:"subtotal"`
	MinDays  int     `json:"min_days,omitempty"`
}

type Quote struct {
	VehicleID         string        `json:"vehicle_id"`
	PickupDate        time.Time     `json:"pickup_date"`
	DropoffDate       time.Time     `json:"dropoff_date"`
	Days              int           `json:"days"`
	PricingDays       int           `json:"pricing_days"`
	Total             float64       `json:"total"`
	Deposit           float64       `json:"deposit"`
	AvgPricePerDay    float64       `json:"avg_price_per_day"`
	SeasonalSurcharge float64       `json:"seasonal_surcharge"`
	DominantSeason    string        `json:"dominant_season,omitempty"`
	MinDays           int           `json:"min_days"`
	Breakdown         []SeasonShare `json:"breakdown"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// Calculator prices a stay per day against the season calendar. The
// per-day rate depends on the total length of the stay: a 15-day
// rental gets the two-week tier rate for every one of its days.
type Calculator struct {
	Seasons        SeasonSource
	Log            *logger.Logger
	DefaultMinDays int
	DepositRate    float64
}

func NewCalculator(seasons SeasonSource, log *logger.Logger, defaultMinDays int, depositRate float64) *Calculator {
	return &Calculator{
		Seasons:        seasons,
		Log:            log,
		DefaultMinDays: defaultMinDays,
		DepositRate:    depositRate,
	}
}

// Quote prices a rental. Two-day stays are billed as three pricing
// days. Days not covered by any season fall back to the baseline low
// season rates.
func (c *Calculator) Quote(ctx context.Context, vehicleID string, pickup, dropoff time.Time) (*Quote, error) {
	if !dropoff.After(pickup) {
		return nil, &models.ValidationError{Field: "dropoff_date", Message: "must be after pickup_date"}
	}

	days := int(dropoff.Sub(pickup).Hours() / 24)
	pricingDays := days
	if days == 2 {
		pricingDays = 3
	}

	seasons, err := c.Seasons.SeasonsFor(ctx, vehicleID, pickup, dropoff)
	if err != nil {
		return nil, err
	}

	// Higher priority seasons win on overlap; stable order otherwise.
	sort.SliceStable(seasons, func(i, j int) bool {
		return seasons[i].Priority > seasons[j].Priority
	})

	quote := &Quote{
		VehicleID:   vehicleID,
		PickupDate:  pickup,
		DropoffDate: dropoff,
		Days:        days,
		PricingDays: pricingDays,
	}

	type bucket struct {
		share SeasonShare
		order int
	}
	buckets := make(map[string]*bucket)
	order := 0

	for i := 0; i < pricingDays; i++ {
		day := pickup.AddDate(0, 0, i)

		var matched *models.Season
		matches := 0
		for idx := range seasons {
			if seasons[idx].ContainsDate(day) {
				if matched == nil {
					matched = &seasons[idx]
				}
				matches++
			}
		}
		if matches > 1 {
			quote.Warnings = appendUnique(quote.Warnings,
				fmt.Sprintf("multiple seasons cover %s; using %q", day.Format("2006-01-02"), matched.Name))
		}

		key := "baseline"
		name := "Standard"
		rate := models.BaselineTierRate(pricingDays)
		minDays := 0
		seasonID := ""
		if matched != nil {
			key = matched.ID
			name = matched.Name
			rate = matched.TierRate(pricingDays)
			minDays = matched.MinDays
			seasonID = matched.ID
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{share: SeasonShare{SeasonID: seasonID, Name: name, Rate: rate, MinDays: minDays}, order: order}
			buckets[key] = b
			order++
		}
		b.share.Days++
		b.share.Subtotal += rate
		quote.Total += rate
	}

	// Assemble breakdown in first-seen order and pick the dominant
	// season by day count.
	shares := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		shares = append(shares, b)
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].order < shares[j].order })

	dominant := (*bucket)(nil)
	for _, b := range shares {
		quote.Breakdown = append(quote.Breakdown, b.share)
		if dominant == nil || b.share.Days > dominant.share.Days {
			dominant = b
		}
	}

	quote.MinDays = c.DefaultMinDays
	if dominant != nil {
		quote.DominantSeason = dominant.share.Name
		if dominant.share.MinDays > 0 {
			quote.MinDays = dominant.share.MinDays
		}
	}

	quote.AvgPricePerDay = quote.Total / float64(pricingDays)
	quote.SeasonalSurcharge = quote.AvgPricePerDay - models.BaselineTierRate(pricingDays)
	if quote.SeasonalSurcharge < 0 {
		quote.SeasonalSurcharge = 0
	}
	quote.Deposit = round2(quote.Total * c.DepositRate)
	quote.Total = round2(quote.Total)
	quote.AvgPricePerDay = round2(quote.AvgPricePerDay)
	quote.SeasonalSurcharge = round2(quote.SeasonalSurcharge)

	c.Log.Debug("PRICING", fmt.Sprintf("Vehicle %s %d days (%d billed) total=%.2f dominant=%q",
		vehicleID, days, pricingDays, quote.Total, quote.DominantSeason))

	return quote, nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
