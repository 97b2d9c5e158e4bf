package stripecheckout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"furgocasa/internal/config"
	"furgocasa/internal/logger"
	"furgocasa/internal/models"
	"furgocasa/internal/payment/gateway"
)

var ErrClientInitFailed = errors.New("failed to initialize Stripe client")

// Gateway runs payments through Stripe hosted checkout sessions. The
// shopper is redirected to Stripe and the result comes back on the
// webhook.
type Gateway struct {
	client *client.API
	cfg    config.StripeConfig
	log    *logger.Logger
}

func New(cfg config.StripeConfig, log *logger.Logger) (*Gateway, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &Gateway{client: sc, cfg: cfg, log: log}, nil
}

func (g *Gateway) Name() string {
	return models.GatewayStripe
}

// Initiate opens a hosted checkout session. The order number travels
// in the session metadata so the webhook can be matched back even if
// the session lookup fails.
func (g *Gateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyEUR)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(int64(req.Amount*100 + 0.5)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(req.CustomerEmail),
		SuccessURL:    stripe.String(g.cfg.SuccessURL),
		CancelURL:     stripe.String(g.cfg.CancelURL),
		Metadata: map[string]string{
			"order_number":   req.OrderNumber,
			"booking_id":     req.BookingID,
			"booking_number": req.BookingNumber,
		},
	}
	if req.Kind == models.KindPreauth {
		// Hold the funds; capture happens out-of-band.
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String("manual"),
		}
	}
	params.Context = ctx

	session, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Checkout session creation failed for order %s: %v", req.OrderNumber, err))
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "could not start checkout", Internal: err}
	}

	g.log.LogGateway(g.Name(), "INITIATE", fmt.Sprintf("Order %s session %s amount %.2f EUR", req.OrderNumber, session.ID, req.Amount))

	return &models.CheckoutSession{
		Gateway:     g.Name(),
		OrderNumber: req.OrderNumber,
		RedirectURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

// VerifyCallback authenticates a webhook delivery against the signing
// secret and maps the event. Only checkout.session events are
// meaningful here; everything else comes back as a failed-type event
// the orchestrator ignores.
func (g *Gateway) VerifyCallback(r *http.Request) (*gateway.Event, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "unreadable webhook body", Internal: err}
	}

	stripeEvent, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), g.cfg.WebhookSecret)
	if err != nil {
		g.log.Warn("GATEWAY", fmt.Sprintf("Rejected stripe webhook: %v", err))
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "invalid webhook signature", Internal: err}
	}

	event := &gateway.Event{Gateway: g.Name()}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		event.Type = gateway.EventAuthorized
	case "checkout.session.expired":
		event.Type = gateway.EventCancelled
	default:
		g.log.Debug("STRIPE", fmt.Sprintf("Ignoring webhook event type %s", stripeEvent.Type))
		event.Type = gateway.EventFailed
		return event, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(stripeEvent.Data.Raw, &session); err != nil {
		return nil, &models.GatewayError{Gateway: g.Name(), Public: "unreadable webhook payload", Internal: err}
	}

	event.SessionID = session.ID
	event.OrderNumber = session.Metadata["order_number"]
	event.Amount = float64(session.AmountTotal) / 100
	event.ResponseCode = string(session.PaymentStatus)

	g.log.LogGateway(g.Name(), "WEBHOOK", fmt.Sprintf("Session %s order %s -> %s", session.ID, event.OrderNumber, event.Type))

	return event, nil
}
