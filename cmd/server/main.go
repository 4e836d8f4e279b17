package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/tierhub/backend/internal/config"
	"github.com/tierhub/backend/internal/handler"
	appMiddleware "github.com/tierhub/backend/internal/middleware"
	"github.com/tierhub/backend/internal/repository"
	"github.com/tierhub/backend/internal/service"
	"github.com/tierhub/backend/internal/ws"
	"github.com/tierhub/backend/pkg/crypto"
	"github.com/tierhub/backend/pkg/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Println("database connected & migrated")

	enc, err := crypto.NewEncryptor(cfg.PayloadKey)
	if err != nil {
		log.Fatalf("encryption error: %v", err)
	}

	store := repository.NewStore(db)
	authSvc := service.NewAuthService(cfg.JWTSecret)
	feedHub := ws.NewFeedHub(authSvc)

	entitlements := service.NewEntitlementManager()
	settlementSvc := service.NewSettlementService(store, entitlements, enc, cfg.PlatformFeePercent, feedHub)
	orderSvc := service.NewOrderService(store, feedHub)

	gateway := payment.NewHMACGateway(cfg.WebhookSecret)
	validate := validator.New()

	healthHandler := handler.NewHealthHandler(db)
	webhookHandler := handler.NewWebhookHandler(gateway, settlementSvc)
	paymentHandler := handler.NewPaymentHandler(settlementSvc, validate)
	orderHandler := handler.NewOrderHandler(orderSvc, validate)
	merchantHandler := handler.NewMerchantHandler(store)

	r := chi.NewRouter()

	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)

	// Gateway webhook: public but signature-checked, with its own limiter
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/payments/webhook", webhookHandler.HandleGatewayEvent)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		// Orders
		r.Post("/api/orders", orderHandler.Create)
		r.Get("/api/orders/{id}", orderHandler.Get)
		r.Post("/api/orders/{id}/cancel", orderHandler.Cancel)

		// Merchant dashboard reads
		r.Get("/api/merchants/{id}/wallet", merchantHandler.Wallet)
		r.Get("/api/merchants/{id}/ledger", merchantHandler.Ledger)
		r.Get("/api/merchants/{id}/stats", merchantHandler.Stats)

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.StaffOnly)
			r.Post("/api/payments/{id}/refund", paymentHandler.Refund)
			r.Post("/api/orders/{id}/advance", orderHandler.Advance)
			r.Post("/api/orders/{id}/complete", orderHandler.Complete)
		})
	})

	// WebSocket feed (auth via query param)
	r.HandleFunc("/merchants/{id}/feed", feedHub.Handle)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("settlement backend listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
