package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avoberry/avoberry-backend/api/controllers"
	"github.com/avoberry/avoberry-backend/api/middleware"
	"github.com/avoberry/avoberry-backend/internal/bulkimport"
	"github.com/avoberry/avoberry-backend/internal/ledger"
	"github.com/avoberry/avoberry-backend/internal/orders"
	"github.com/avoberry/avoberry-backend/internal/purchases"
	mpwebhook "github.com/avoberry/avoberry-backend/internal/webhooks/mercadopago"
	"github.com/avoberry/avoberry-backend/pkg/config"
	"github.com/avoberry/avoberry-backend/pkg/db"
	"github.com/avoberry/avoberry-backend/pkg/logger"
	"github.com/avoberry/avoberry-backend/pkg/redis"
)

type Deps struct {
	DB            db.Pinger
	Redis         redis.Pinger
	BulkImport    bulkimport.Service
	OrdersRepo    orders.Repository
	OrdersService orders.Service
	LedgerRepo    ledger.Repository
	Purchases     purchases.Service
	Webhook       *mpwebhook.Service
	MetricsGather prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(deps)))
	})

	if deps.MetricsGather != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsGather, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", controllers.MercadoPagoWebhook(deps.Webhook, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/", controllers.OrdersList(deps.OrdersService, logg))
		r.Post("/upload", controllers.OrdersUpload(deps.BulkImport, logg))
		r.Get("/{orderID}", controllers.OrderDetail(deps.OrdersRepo, deps.LedgerRepo, logg))
		r.Patch("/{orderID}/status", controllers.OrderForceStatus(deps.OrdersService, logg))
	})

	r.Route("/api/v1/purchases", func(r chi.Router) {
		r.Post("/", controllers.PurchaseIntake(deps.Purchases, logg))
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["database"] = deps.DB
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis
	}
	return out
}
