package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"weddinghub/internal/config"
	"weddinghub/internal/database"
	"weddinghub/internal/domain/booking"
	jwtsvc "weddinghub/internal/pkg/jwt"
	"weddinghub/internal/pkg/lock"
	"weddinghub/internal/pkg/metrics"
	"weddinghub/internal/realtime"
	"weddinghub/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL, database.Options{})
	if err != nil {
		log.Fatal(err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(db, booking.Models()...); err != nil {
			log.Fatal(err)
		}
	}

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	var recorder booking.Recorder
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		recorder = metrics.NewBooking(prometheus.DefaultRegisterer)
		gatherer = prometheus.DefaultGatherer
	}

	engine := booking.NewEngine(booking.NewStore(db), locker, recorder, booking.EngineConfig{
		MaxRetries: cfg.BookingMaxRetries,
		Quotes: booking.QuoteDefaults{
			TaxRate:            cfg.DefaultTaxRate,
			DownpaymentPercent: cfg.DefaultDownpaymentPercent,
			ValidDays:          cfg.QuoteValidDays,
		},
	}, log.Printf)

	hub := realtime.NewHub(log.Printf)
	engine.SetNotifier(hub)

	jwtService := jwtsvc.New(cfg.JWTSecret, 24*time.Hour)
	router := server.NewRouter(server.Deps{
		DB:             db,
		JWT:            jwtService,
		Bookings:       booking.NewHandler(engine, log.Printf),
		Realtime:       realtime.NewHandler(hub, jwtService, cfg.CORSAllowedOrigins),
		WebhookToken:   cfg.PaymentWebhookToken,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        gatherer,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info msg=listening addr=%s env=%s lock_backend=%s", cfg.HTTPAddr, cfg.AppEnv, cfg.LockBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, draining requests...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("level=error msg=shutdown failed err=%v", err)
	}
}

func newLocker(cfg *config.Config) (booking.Locker, func()) {
	if cfg.LockBackend != "redis" {
		return lock.NewLocal(cfg.LockWait), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	if err := lock.Ping(context.Background(), client); err != nil {
		log.Fatal(err)
	}
	return lock.NewRedis(client, cfg.LockTTL, cfg.LockWait, log.Printf), func() { _ = client.Close() }
}
