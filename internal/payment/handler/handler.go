package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"furgocasa/internal/kafka"
	"furgocasa/internal/logger"
	"furgocasa/internal/models"
	"furgocasa/internal/payment"
	"furgocasa/internal/payment/gateway"
	"furgocasa/internal/utils"
)

type Handler struct {
	orchestrator *payment.Orchestrator
	redsys       gateway.PaymentGateway
	stripe       gateway.PaymentGateway
	producer     *kafka.Producer
	logger       *logger.Logger
}

func NewHandler(orchestrator *payment.Orchestrator, redsys, stripe gateway.PaymentGateway, producer *kafka.Producer, log *logger.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		redsys:       redsys,
		stripe:       stripe,
		producer:     producer,
		logger:       log,
	}
}

// InitiatePayment opens a checkout for a booking.
func (h *Handler) InitiatePayment(c *gin.Context) {
	var req models.PaymentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	session, pmt, err := h.orchestrator.InitiatePayment(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPaymentInitiated(*pmt); err != nil {
			h.logger.Warn("KAFKA", fmt.Sprintf("Publish error (payment initiated): %v", err))
		}
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Checkout created", gin.H{
		"payment": pmt,
		"session": session,
	}))
}

// GetPayment returns one payment attempt.
func (h *Handler) GetPayment(c *gin.Context) {
	pmt, err := h.orchestrator.GetPayment(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment found", pmt))
}

// ListBookingPayments returns every payment attempt for a booking.
func (h *Handler) ListBookingPayments(c *gin.Context) {
	payments, err := h.orchestrator.ListPaymentsByBooking(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payments listed", payments))
}

// RefundPayment reverses an authorized payment.
func (h *Handler) RefundPayment(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	if err := h.orchestrator.Refund(c.Request.Context(), c.Param("paymentId"), req.Reason); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment refunded", nil))
}

// RedsysNotification is the server-to-server callback from the bank.
// Once the signature checks out the bank always gets a 200, whatever
// the reconciliation outcome: anything else makes it retry a
// notification we have already dealt with.
func (h *Handler) RedsysNotification(c *gin.Context) {
	event, err := h.redsys.VerifyCallback(c.Request)
	if err != nil {
		h.logger.Warn("GATEWAY", fmt.Sprintf("Rejected redsys notification: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid notification", "signature verification failed"))
		return
	}

	h.reconcileAndAck(c, event)
}

// RedsysReturn is where the shopper's browser lands after the payment
// page. It only reads state: the authoritative update comes through
// the notification endpoint.
func (h *Handler) RedsysReturn(c *gin.Context) {
	orderNumber := c.Query("order")
	result := c.Query("result")

	status := "pending"
	if pmt, err := h.orchestrator.Store.GetPaymentByOrderNumber(c.Request.Context(), orderNumber); err == nil {
		status = pmt.Status
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment return", gin.H{
		"order_number": orderNumber,
		"result":       result,
		"status":       status,
	}))
}

// StripeWebhook receives checkout session events from Stripe. Same
// acknowledgment contract as the bank notification.
func (h *Handler) StripeWebhook(c *gin.Context) {
	event, err := h.stripe.VerifyCallback(c.Request)
	if err != nil {
		h.logger.Warn("GATEWAY", fmt.Sprintf("Rejected stripe webhook: %v", err))
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook", "signature verification failed"))
		return
	}

	// Unhandled event types are acknowledged without reconciliation.
	if event.OrderNumber == "" && event.SessionID == "" {
		c.JSON(http.StatusOK, utils.SuccessResponse("Event ignored", nil))
		return
	}

	h.reconcileAndAck(c, event)
}

func (h *Handler) reconcileAndAck(c *gin.Context, event *gateway.Event) {
	err := h.orchestrator.Reconcile(c.Request.Context(), event)
	switch {
	case err == nil:
		if h.producer != nil && event.Type == gateway.EventAuthorized {
			if pubErr := h.producer.PublishPaymentAuthorized(event.Gateway, event.OrderNumber, event.Amount); pubErr != nil {
				h.logger.Warn("KAFKA", fmt.Sprintf("Publish error (payment authorized): %v", pubErr))
			}
		}
	case errors.Is(err, models.ErrDuplicateNotification):
		h.logger.Info("PAYMENT", fmt.Sprintf("Duplicate notification for order %s acknowledged", event.OrderNumber))
	default:
		// Acknowledge anyway; the failure is ours to chase, and a
		// retry storm from the gateway will not fix it.
		h.logger.LogAudit("RECONCILE_FAILED",
			fmt.Sprintf("Order %s session %s: %v", event.OrderNumber, event.SessionID, err))
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Notification processed", nil))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	var perr *models.PolicyViolation
	var gerr *models.GatewayError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request", verr.Error()))
	case errors.As(err, &perr):
		c.JSON(http.StatusUnprocessableEntity, utils.ErrorResponse("Request not allowed", perr.Error()))
	case errors.As(err, &gerr):
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Payment provider error", gerr.Public))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Internal error", err.Error()))
	}
}
