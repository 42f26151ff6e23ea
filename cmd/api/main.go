package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/avoberry/avoberry-backend/api/routes"
	"github.com/avoberry/avoberry-backend/internal/bulkimport"
	"github.com/avoberry/avoberry-backend/internal/catalog"
	"github.com/avoberry/avoberry-backend/internal/ledger"
	"github.com/avoberry/avoberry-backend/internal/orders"
	"github.com/avoberry/avoberry-backend/internal/purchases"
	"github.com/avoberry/avoberry-backend/internal/reconcile"
	"github.com/avoberry/avoberry-backend/internal/shipments"
	"github.com/avoberry/avoberry-backend/internal/users"
	mpwebhook "github.com/avoberry/avoberry-backend/internal/webhooks/mercadopago"
	"github.com/avoberry/avoberry-backend/pkg/config"
	"github.com/avoberry/avoberry-backend/pkg/db"
	"github.com/avoberry/avoberry-backend/pkg/logger"
	"github.com/avoberry/avoberry-backend/pkg/metrics"
	"github.com/avoberry/avoberry-backend/pkg/migrate"
	"github.com/avoberry/avoberry-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	gdb := dbClient.DB()
	usersRepo := users.NewRepository(gdb)
	catalogRepo := catalog.NewRepository(gdb)
	ordersRepo := orders.NewRepository(gdb)
	ledgerRepo := ledger.NewRepository(gdb)
	paymentsRepo := reconcile.NewRepository(gdb)

	ledgerSvc, err := ledger.NewService(ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	shipmentsSvc, err := shipments.NewService(shipments.NewRepository(gdb))
	if err != nil {
		logg.Error(context.Background(), "failed to create shipments service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	flatRate := decimal.NewFromFloat(cfg.Shipping.FlatRate)

	reconcileSvc, err := reconcile.NewService(
		paymentsRepo,
		ordersRepo,
		usersRepo,
		catalogRepo,
		ledgerSvc,
		shipmentsSvc,
		dbClient,
		reconcile.Config{
			ShippingFlatRate:    flatRate,
			BestSellerThreshold: cfg.Orders.BestSellerThreshold,
		},
		logg,
		reconcileMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	idGen := orders.NewGenerator(rand.NewSource(time.Now().UnixNano()), cfg.Orders.IDMaxAttempts)

	importSvc, err := bulkimport.NewService(
		ordersRepo,
		usersRepo,
		catalogRepo,
		ledgerSvc,
		idGen,
		dbClient,
		bulkimport.Config{ShippingFlatRate: flatRate},
		logg,
		reconcileMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create bulk import service", err)
		os.Exit(1)
	}

	purchasesSvc, err := purchases.NewService(
		purchases.NewRepository(gdb),
		catalogRepo,
		ledgerSvc,
		dbClient,
		rand.NewSource(time.Now().UnixNano()),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchases service", err)
		os.Exit(1)
	}

	webhookGuard, err := mpwebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "mercadopago")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}
	webhookSvc, err := mpwebhook.NewService(mpwebhook.ServiceParams{
		Fetcher:    mpwebhook.NewClient(cfg.MercadoPago),
		Reconciler: reconcileSvc,
		Guard:      webhookGuard,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:            dbClient,
			Redis:         redisClient,
			BulkImport:    importSvc,
			OrdersRepo:    ordersRepo,
			OrdersService: ordersSvc,
			LedgerRepo:    ledgerRepo,
			Purchases:     purchasesSvc,
			Webhook:       webhookSvc,
			MetricsGather: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
