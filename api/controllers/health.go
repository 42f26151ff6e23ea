package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/avoberry/avoberry-backend/api/responses"
	"github.com/avoberry/avoberry-backend/pkg/config"
	pkgerrors "github.com/avoberry/avoberry-backend/pkg/errors"
	"github.com/avoberry/avoberry-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is the readiness contract dependencies expose.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Avoberry-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		w.Header().Set("X-Avoberry-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
