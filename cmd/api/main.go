package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"atomovision-editorial/internal/config"
	"atomovision-editorial/internal/db"
	"atomovision-editorial/internal/httpserver"
	"atomovision-editorial/internal/mailer"
	"atomovision-editorial/internal/payment"
	"atomovision-editorial/internal/ratelimit"
	bookrepo "atomovision-editorial/internal/repository/book"
	genrerepo "atomovision-editorial/internal/repository/genre"
	purchaserepo "atomovision-editorial/internal/repository/purchase"
	catalogsvc "atomovision-editorial/internal/service/catalog"
	downloadsvc "atomovision-editorial/internal/service/download"
	notifysvc "atomovision-editorial/internal/service/notify"
	purchasesvc "atomovision-editorial/internal/service/purchase"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	bookRepo := bookrepo.NewPostgres(dbpool, logger)
	genreRepo := genrerepo.NewPostgres(dbpool)
	purchaseRepo := purchaserepo.NewPostgres(dbpool, logger)

	catalogService := catalogsvc.New(bookRepo, genreRepo)
	purchaseService := purchasesvc.New(purchaseRepo, bookRepo)
	downloadService := downloadsvc.New(purchaseRepo, bookRepo)

	brevo := mailer.NewBrevo(cfg.BrevoAPIKey, cfg.BrevoFromEmail, cfg.BrevoFromName)
	notifyService := notifysvc.New(brevo, cfg.PublicBaseURL, logger)

	gateway := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)

	var limiter httpserver.RateLimiter
	if cfg.RedisURL != "" {
		rl, err := ratelimit.New(ctx, cfg.RedisURL, cfg.RateLimit, cfg.RateLimitWindow)
		if err != nil {
			logger.Fatalf("connect to redis: %v", err)
		}
		defer rl.Close()
		limiter = rl
	} else {
		logger.Printf("REDIS_URL not set, rate limiting disabled")
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Catalog:    catalogService,
		Purchases:  purchaseService,
		Downloads:  downloadService,
		Notifier:   notifyService,
		Gateway:    gateway,
		Limiter:    limiter,
		AdminToken: cfg.AdminToken,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
