package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"furgocasa/internal/auth"
	"furgocasa/internal/config"
	"furgocasa/internal/kafka"
	"furgocasa/internal/logger"
	"furgocasa/internal/payment"
	"furgocasa/internal/payment/gateway"
	"furgocasa/internal/payment/gateway/redsys"
	"furgocasa/internal/payment/gateway/stripecheckout"
	"furgocasa/internal/payment/handler"
	"furgocasa/internal/payment/storage"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	// --- Payment Storage ---
	store, err := storage.NewPostgreSQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize payment storage: %v", err))
	}
	defer store.Close()

	// --- Gateways ---
	redsysGateway := redsys.New(cfg.Redsys, log)
	stripeGateway, err := stripecheckout.New(cfg.Stripe, log)
	if err != nil {
		log.Fatal("GATEWAY", fmt.Sprintf("Failed to initialize Stripe: %v", err))
	}

	gateways := map[string]gateway.PaymentGateway{
		redsysGateway.Name(): redsysGateway,
		stripeGateway.Name(): stripeGateway,
	}

	// --- Kafka Setup ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{kafka.TopicPayments}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed, continuing without events: %v", err))
		} else {
			producer = kafka.NewProducer(cfg.Kafka.Brokers, kafka.TopicPayments)
			defer producer.Close()
			log.LogKafka("CONNECT", kafka.TopicPayments, "Producer ready")
		}
	}

	// --- Orchestrator and Routes ---
	orchestrator := payment.NewOrchestrator(store, gateways, log)
	h := handler.NewHandler(orchestrator, redsysGateway, stripeGateway, producer, log)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/initiate", h.InitiatePayment)
		v1.GET("/payments/:paymentId", h.GetPayment)
		v1.GET("/bookings/:bookingId/payments", h.ListBookingPayments)
		v1.POST("/payments/:paymentId/refund", verifier.RequireAdminGin(), h.RefundPayment)

		v1.GET("/payments/redsys/return", h.RedsysReturn)
		v1.POST("/payments/redsys/notification", h.RedsysNotification)
		v1.POST("/payments/stripe/webhook", h.StripeWebhook)
	}

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    ":" + cfg.Server.PaymentPort,
		Handler: router,
	}

	go func() {
		log.Info("API", "Payment service running on :"+cfg.Server.PaymentPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API", "Shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("API", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("API", "Payment service exited gracefully")
}
