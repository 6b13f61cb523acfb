package httpapi

import (
	"context"
	"net/http"

	"lodepa-air/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// HealthCheck a dependency probe; nil error means healthy
type HealthCheck func(ctx context.Context) error

// Router chi mux with the shared middleware stack. Register* methods mount
// one handler group each.
type Router struct {
	mux    *chi.Mux
	logger *zap.Logger
}

// NewRouter m may be nil
func NewRouter(logger *zap.Logger, m *metrics.Metrics) *Router {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(m.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Fail("not found"))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Fail("method not allowed"))
	})

	return &Router{mux: mux, logger: logger}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes /health runs every check; any failure answers 503.
// /metrics exposes the Prometheus registry.
func (r *Router) RegisterHealthRoutes(checks map[string]HealthCheck) {
	r.mux.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(req.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				r.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				continue
			}
			results[name] = "ok"
		}
		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		writeJSON(w, status, body)
	})
	r.mux.Handle("/metrics", metrics.Handler())
}

func (r *Router) RegisterDeviceRoutes(h *DeviceHandler) {
	r.mux.Route("/api/v1/devices/{deviceId}", func(cr chi.Router) {
		cr.Get("/last", h.GetLastReading)
		cr.Get("/series", h.GetSeries)
		cr.Get("/report", h.GetReport)
		cr.Get("/status", h.GetStatus)
	})
}

func (r *Router) RegisterRoomRoutes(h *RoomHandler) {
	r.mux.Route("/api/v1/rooms/{roomId}", func(cr chi.Router) {
		cr.Get("/thresholds", h.GetThresholds)
		cr.Get("/thresholds/{parameter}", h.GetThreshold)
		cr.Post("/status", h.ClassifyReadings)
	})
	r.mux.Put("/api/v1/thresholds/{parameter}", h.PutGlobalThreshold)
}

func (r *Router) RegisterAlertConfigRoutes(h *AlertConfigHandler) {
	r.mux.Route("/api/v1/alert-configs", func(cr chi.Router) {
		cr.Get("/", h.ListAlertConfigs)
		cr.Put("/", h.SaveAlertConfig)
		cr.Get("/{id}", h.GetAlertConfig)
		cr.Delete("/{id}", h.DeleteAlertConfig)
	})
}

func (r *Router) RegisterAlarmEventRoutes(h *AlarmEventHandler) {
	r.mux.Get("/api/v1/alarm-events", h.ListAlarmEvents)
}
