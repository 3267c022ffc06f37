package main // Entry point package

import (
	"context"
	"log" // Logging library

	"github.com/joho/godotenv"    // .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/account-service/internal/auth"       // token issuer
	"github.com/iliyamo/account-service/internal/config"     // env config loader
	"github.com/iliyamo/account-service/internal/database"   // MySQL open + migrations
	"github.com/iliyamo/account-service/internal/handler"    // HTTP handlers
	"github.com/iliyamo/account-service/internal/middleware" // rate limiting
	"github.com/iliyamo/account-service/internal/payment"    // Stripe provider
	"github.com/iliyamo/account-service/internal/queue"      // event publisher + consumer
	"github.com/iliyamo/account-service/internal/repository" // credential store
	"github.com/iliyamo/account-service/internal/router"     // route registration
	"github.com/iliyamo/account-service/internal/service"    // session + billing orchestration
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly
	cfg := config.Load()

	db, err := database.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTTLMin, cfg.RefreshTTLDays)
	if err != nil {
		log.Fatalf("build token issuer: %v", err)
	}

	users := repository.NewUserRepo(db)
	provider := payment.NewStripeProvider(cfg.StripeAPIKey, cfg.StripeWebhookSecret)
	sessions := service.NewSessionManager(users, issuer, cfg.BcryptCost)
	billing := service.NewBillingReconciler(users, provider, queue.NewPublisher(), cfg.StripePriceID, cfg.PublicBaseURL)

	// Background consumer mirroring subscription changes into logs/billing.log.
	go func() {
		if err := queue.StartSubscriptionConsumer(); err != nil {
			log.Printf("subscription consumer stopped: %v", err)
		}
	}()

	// Rate limiter degrades to a pass-through when Redis is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}
	ratelimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e, handler.NewAuthHandler(sessions), handler.NewPaymentHandler(sessions, billing), issuer, ratelimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
