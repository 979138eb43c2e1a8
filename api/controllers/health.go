package controllers

import (
	"context"
	"net/http"

	"github.com/vendaslabs/orders-backend/api/responses"
	"github.com/vendaslabs/orders-backend/pkg/config"
	"github.com/vendaslabs/orders-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vendas-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when both backing stores answer a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, redis pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Vendas-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true
		for name, p := range map[string]pinger{"db": db, "redis": redis} {
			if p == nil {
				checks[name] = "unconfigured"
				healthy = false
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				if logg != nil {
					logg.Error(r.Context(), "readiness check failed: "+name, err)
				}
				checks[name] = "down"
				healthy = false
				continue
			}
			checks[name] = "up"
		}

		status := http.StatusOK
		state := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": state,
			"checks": checks,
		})
	}
}
