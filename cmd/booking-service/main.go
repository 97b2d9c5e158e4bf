package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"furgocasa/internal/auth"
	"furgocasa/internal/availability"
	"furgocasa/internal/booking"
	"furgocasa/internal/booking/api"
	bookingdb "furgocasa/internal/booking/db"
	rediswrap "furgocasa/internal/booking/redis"
	"furgocasa/internal/booking/voucher"
	"furgocasa/internal/config"
	"furgocasa/internal/coupon"
	"furgocasa/internal/database/migrations"
	"furgocasa/internal/kafka"
	"furgocasa/internal/logger"
	"furgocasa/internal/pricing"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL Setup ---
	sslmode := "require"
	if cfg.Database.Insecure {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Addr, cfg.Database.Database, sslmode)

	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.LogDatabase("CONNECT", "postgresql", "Connected to "+cfg.Database.Addr)

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// Run migrations
	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	log.Info("REDIS", "Connected to "+cfg.Redis.Addr)

	// --- Kafka Setup ---
	var publisher booking.KafkaPublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{kafka.TopicBookings}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed, continuing without events: %v", err))
		} else {
			producer := kafka.NewProducer(cfg.Kafka.Brokers, kafka.TopicBookings)
			defer producer.Close()
			publisher = producer
			log.LogKafka("CONNECT", kafka.TopicBookings, "Producer ready")
		}
	}

	// --- Initialize Dependencies ---
	dbLayer := bookingdb.NewDB(bunDB)
	redisLock := rediswrap.NewRedis(redisClient, log)
	checker := availability.NewChecker(bunDB, log)

	seasonSource := pricing.NewSeasonCache(redisClient, &pricing.DBSeasonSource{DB: bunDB}, cfg.Pricing.SeasonCacheTTL, log)
	calculator := pricing.NewCalculator(seasonSource, log, cfg.Booking.DefaultMinDays, cfg.Pricing.DepositRate)
	coupons := coupon.NewValidator(bunDB, log)
	vouchers := voucher.NewGenerator(cfg.Auth.VoucherSecret)

	log.Info("BOOKING", "Initializing booking service")
	service := booking.NewService(dbLayer, redisLock, checker, calculator, coupons, publisher, log)
	handler := &api.Handler{
		Service:  service,
		Checker:  checker,
		Pricing:  calculator,
		Coupons:  coupons,
		Vouchers: vouchers,
		Log:      log,
	}

	// --- Lifecycle Scheduler ---
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	scheduler := booking.NewScheduler(dbLayer, service, cfg.Booking.SchedulerInterval, log)
	go scheduler.Run(schedulerCtx)

	// --- Setup Router ---
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/availability", handler.GetAvailability)
		r.Post("/pricing/quote", handler.QuotePrice)
		r.Post("/coupons/validate", handler.ValidateCoupon)

		r.Post("/bookings", handler.CreateBooking)
		r.Get("/bookings/{bookingId}", handler.GetBooking)
		r.Get("/bookings/{bookingId}/voucher", handler.GetVoucher)

		r.With(verifier.RequireAdmin).Delete("/bookings/{bookingId}", handler.CancelBooking)
		r.With(verifier.RequireAdmin).Post("/bookings/{bookingId}/status", handler.TransitionBooking)
	})

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:    ":" + cfg.Server.BookingPort,
		Handler: r,
	}

	go func() {
		log.Info("API", "Booking service running on :"+cfg.Server.BookingPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API", "Shutdown signal received")

	stopScheduler()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("API", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("API", "Booking service exited gracefully")
}
