package booking

import (
	"context"
	"fmt"
	"time"

	"furgocasa/internal/logger"
	"furgocasa/internal/models"
)

type SchedulerDB interface {
	ListConfirmedDueForPickup(ctx context.Context, now time.Time) ([]models.Booking, error)
	ListActivePastDropoff(ctx context.Context, now time.Time) ([]models.Booking, error)
}

// Scheduler drives the time-based lifecycle transitions: confirmed
// bookings become active on pickup day and active ones complete after
// dropoff. Payment-driven transitions stay with the payment flow.
type Scheduler struct {
	DB       SchedulerDB
	Service  *Service
	Interval time.Duration
	Log      *logger.Logger
}

func NewScheduler(db SchedulerDB, service *Service, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{DB: db, Service: service, Interval: interval, Log: log}
}

// Run ticks until the context is cancelled. One pass runs immediately
// on start so a restarted service catches up without waiting a full
// interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.Log.Info("SCHEDULER", fmt.Sprintf("Lifecycle scheduler running every %s", s.Interval))

	s.Tick(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Info("SCHEDULER", "Lifecycle scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass. Failures on individual bookings are
// logged and skipped; the next pass retries them.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.DB.ListConfirmedDueForPickup(ctx, now)
	if err != nil {
		s.Log.Error("SCHEDULER", fmt.Sprintf("Failed to list bookings due for pickup: %v", err))
	} else {
		for _, b := range due {
			if _, err := s.Service.Transition(ctx, b.ID, models.BookingActive); err != nil {
				s.Log.Warn("SCHEDULER", fmt.Sprintf("Could not activate booking %s: %v", b.BookingNumber, err))
			}
		}
	}

	overdue, err := s.DB.ListActivePastDropoff(ctx, now)
	if err != nil {
		s.Log.Error("SCHEDULER", fmt.Sprintf("Failed to list bookings past dropoff: %v", err))
		return
	}
	for _, b := range overdue {
		if _, err := s.Service.Transition(ctx, b.ID, models.BookingCompleted); err != nil {
			s.Log.Warn("SCHEDULER", fmt.Sprintf("Could not complete booking %s: %v", b.BookingNumber, err))
		}
	}
}
