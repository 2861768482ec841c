package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/auth"
	"github.com/trellismart/backend/internal/config"
	deliveryHTTP "github.com/trellismart/backend/internal/delivery/http"
	"github.com/trellismart/backend/internal/entity"
	"github.com/trellismart/backend/internal/messaging/kafka"
	"github.com/trellismart/backend/internal/metrics"
	"github.com/trellismart/backend/internal/notification"
	"github.com/trellismart/backend/internal/payment"
	"github.com/trellismart/backend/internal/repository/postgres"
	redisRepo "github.com/trellismart/backend/internal/repository/redis"
	"github.com/trellismart/backend/internal/service"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg := config.Load()

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	userRepo := postgres.NewUserRepository(db)
	productRepo := postgres.NewProductRepository(db)
	orderRepo := postgres.NewOrderRepository(db)

	if cfg.SeedDemoData {
		if err := productRepo.Seed(context.Background(), demoProducts()); err != nil {
			slog.Error("Failed to seed products", "err", err)
			os.Exit(1)
		}
	}

	// --- Redis (carts) ---
	redisClient := goRedis.NewClient(&goRedis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cartRepo := redisRepo.NewCartRepository(redisClient)

	// --- Kafka ---
	publisher, subscriber, closeBroker := kafka.NewKafkaBroker(cfg.KafkaBrokers)
	defer closeBroker()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// --- Services ---
	authenticator := auth.NewAuthenticator(cfg.JWTSecret)
	userSvc := service.NewUserService(userRepo, authenticator)
	productSvc := service.NewProductService(productRepo)
	cartSvc := service.NewCartService(cartRepo, productRepo)
	orderSvc := service.NewOrderService(orderRepo, productRepo, publisher, cfg.TopicOrdersPlaced)

	gateways := map[payment.Method]payment.Gateway{
		payment.MethodStripe: payment.NewStripeGateway(cfg.StripeBaseURL, cfg.StripeSecretKey),
		payment.MethodPayPal: payment.NewPayPalGateway(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalSecret, cfg.BaseURL),
	}
	checkoutSvc := service.NewCheckoutService(cartRepo, productRepo, orderRepo, gateways, publisher, m, cfg.TopicOrdersConfirmed)

	// --- HTTP ---
	handler := deliveryHTTP.NewHandler(userSvc, productSvc, cartSvc, orderSvc, checkoutSvc, authenticator)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, registry)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: deliveryHTTP.EnableCORS(mux),
	}

	// --- Start everything ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Consumer: orders.confirmed → confirmation notifications.
	dispatcher := notification.NewDispatcher(notification.LogSender{}, userRepo)
	go subscriber.Consume(ctx, cfg.TopicOrdersConfirmed, cfg.ConsumerGroup, dispatcher.HandleOrderConfirmed)

	// Reaper: bound how long abandoned two-phase checkouts stay Pending.
	go checkoutSvc.RunPendingOrderReaper(ctx, cfg.PendingOrderTTL, time.Minute)

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "err", err)
	}
}

func demoProducts() []entity.Product {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return []entity.Product{
		{
			ID: "prod-001", Name: "Classic Cotton Tee", Description: "Heavyweight cotton t-shirt with a relaxed fit.",
			Category: "Apparel", Subcategory: "T-Shirts", Brand: "Northloom", SellerID: "seed-seller",
			Images: []string{"https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400"},
			Variations: []entity.Variation{
				{Color: "white", Size: "M", Price: price("19.99"), Stock: 120},
				{Color: "white", Size: "L", Price: price("19.99"), Stock: 80},
				{Color: "black", Size: "M", Price: price("21.99"), Stock: 60},
			},
		},
		{
			ID: "prod-002", Name: "Trail Running Shoes", Description: "Lightweight trail shoes with aggressive grip.",
			Category: "Footwear", Subcategory: "Running", Brand: "Cragstep", SellerID: "seed-seller",
			Images: []string{"https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=400"},
			Variations: []entity.Variation{
				{Color: "red", Size: "42", Price: price("89.50"), Stock: 25},
				{Color: "red", Size: "43", Price: price("89.50"), Stock: 30},
				{Color: "blue", Size: "42", Price: price("92.00"), Stock: 15},
			},
		},
		{
			ID: "prod-003", Name: "Merino Wool Hoodie", Description: "Midweight merino hoodie for year-round layering.",
			Category: "Apparel", Subcategory: "Hoodies", Brand: "Fjellvang", SellerID: "seed-seller",
			Images: []string{"https://images.unsplash.com/photo-1556821840-3a63f95609a7?w=400"},
			Variations: []entity.Variation{
				{Color: "navy", Size: "S", Price: price("129.00"), Stock: 18},
				{Color: "navy", Size: "M", Price: price("129.00"), Stock: 22},
				{Color: "charcoal", Size: "M", Price: price("129.00"), Stock: 12},
			},
		},
	}
}
