package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"furgocasa/internal/availability"
	"furgocasa/internal/booking"
	"furgocasa/internal/booking/voucher"
	"furgocasa/internal/coupon"
	"furgocasa/internal/logger"
	"furgocasa/internal/models"
	"furgocasa/internal/utils"
)

type Handler struct {
	Service  *booking.Service
	Checker  *availability.Checker
	Pricing  booking.Quoter
	Coupons  *coupon.Validator
	Vouchers *voucher.Generator
	Log      *logger.Logger
}

// GetAvailability answers GET /availability?vehicle_id=..&pickup_date=..&dropoff_date=..
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	vehicleID := r.URL.Query().Get("vehicle_id")
	pickup, err := utils.ParseDate(r.URL.Query().Get("pickup_date"))
	if err != nil {
		writeError(w, &models.ValidationError{Field: "pickup_date", Message: err.Error()})
		return
	}
	dropoff, err := utils.ParseDate(r.URL.Query().Get("dropoff_date"))
	if err != nil {
		writeError(w, &models.ValidationError{Field: "dropoff_date", Message: err.Error()})
		return
	}
	if vehicleID == "" {
		writeError(w, &models.ValidationError{Field: "vehicle_id", Message: "is required"})
		return
	}

	result, err := h.Checker.Check(r.Context(), vehicleID, pickup, dropoff, "")
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("availability checked", result))
}

type quoteRequest struct {
	VehicleID   string `json:"vehicle_id"`
	PickupDate  string `json:"pickup_date"`
	DropoffDate string `json:"dropoff_date"`
}

// QuotePrice answers POST /pricing/quote.
func (h *Handler) QuotePrice(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}

	pickup, dropoff, err := parseRange(req.PickupDate, req.DropoffDate)
	if err != nil {
		writeError(w, err)
		return
	}

	quote, err := h.Pricing.Quote(r.Context(), req.VehicleID, pickup, dropoff)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("quote calculated", quote))
}

type couponRequest struct {
	Code        string `json:"code"`
	VehicleID   string `json:"vehicle_id"`
	PickupDate  string `json:"pickup_date"`
	DropoffDate string `json:"dropoff_date"`
}

// ValidateCoupon answers POST /coupons/validate. The rental is priced
// first so the coupon's day and amount thresholds see the same totals
// a booking would.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}
	if req.Code == "" {
		writeError(w, &models.ValidationError{Field: "code", Message: "is required"})
		return
	}

	pickup, dropoff, err := parseRange(req.PickupDate, req.DropoffDate)
	if err != nil {
		writeError(w, err)
		return
	}

	quote, err := h.Pricing.Quote(r.Context(), req.VehicleID, pickup, dropoff)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Coupons.Validate(r.Context(), coupon.Request{
		Code:        req.Code,
		PickupDate:  pickup,
		DropoffDate: dropoff,
		Days:        quote.Days,
		Total:       quote.Total,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("coupon checked", result))
}

// CreateBooking answers POST /bookings.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}

	created, err := h.Service.CreateBooking(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("booking created", created))
}

// GetBooking answers GET /bookings/{bookingId}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	found, err := h.Service.GetBooking(r.Context(), bookingID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("booking found", found))
}

// CancelBooking answers DELETE /bookings/{bookingId}. Bookings are
// never deleted, only moved to cancelled so their dates free up.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	cancelled, err := h.Service.Cancel(r.Context(), bookingID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("booking cancelled", cancelled))
}

type transitionRequest struct {
	Status string `json:"status"`
}

// TransitionBooking answers POST /bookings/{bookingId}/status, the
// admin override for lifecycle moves.
func (h *Handler) TransitionBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &models.ValidationError{Message: "invalid request body: " + err.Error()})
		return
	}

	updated, err := h.Service.Transition(r.Context(), bookingID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("booking updated", updated))
}

// GetVoucher answers GET /bookings/{bookingId}/voucher with a PNG QR
// code for pickup.
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	found, err := h.Service.GetBooking(r.Context(), bookingID)
	if err != nil {
		writeError(w, err)
		return
	}
	if found.Status != models.BookingConfirmed && found.Status != models.BookingActive {
		writeError(w, &models.PolicyViolation{
			Rule:    "voucher_requires_confirmed_booking",
			Message: "voucher is only issued once the booking is confirmed",
		})
		return
	}

	png, err := h.Vouchers.PNG(found)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func parseRange(pickupStr, dropoffStr string) (time.Time, time.Time, error) {
	pickup, err := utils.ParseDate(pickupStr)
	if err != nil {
		return time.Time{}, time.Time{}, &models.ValidationError{Field: "pickup_date", Message: err.Error()}
	}
	dropoff, err := utils.ParseDate(dropoffStr)
	if err != nil {
		return time.Time{}, time.Time{}, &models.ValidationError{Field: "dropoff_date", Message: err.Error()}
	}
	if !dropoff.After(pickup) {
		return time.Time{}, time.Time{}, &models.ValidationError{Field: "dropoff_date", Message: "must be after pickup_date"}
	}
	return pickup, dropoff, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. Conflicts
// carry their overlapping ranges in the response body so callers can
// show them.
func writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	var cerr *models.ConflictError
	var perr *models.PolicyViolation

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", verr.Error()))
	case errors.As(err, &cerr):
		resp := utils.ErrorResponse("dates not available", cerr.Error())
		resp.Data = map[string]interface{}{"conflicts": cerr.Conflicts}
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(err, &perr):
		writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("request not allowed", perr.Error()))
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("not found", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", err.Error()))
	}
}
