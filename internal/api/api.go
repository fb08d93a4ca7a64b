package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jbweber/homelab/parkingcontrol/internal/metrics"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// API holds the handler groups and their shared dependencies
type API struct {
	spots   *ParkingSpots
	health  Pinger
	metrics *metrics.Metrics
}

// NewAPI creates a new API over the parking spot service.
// health and m may be nil; the matching endpoints are then not registered.
func NewAPI(store ParkingSpotsStore, health Pinger, m *metrics.Metrics) *API {
	return &API{
		spots:   NewParkingSpots(store, m),
		health:  health,
		metrics: m,
	}
}

// NewRouter builds a chi router with the service middleware stack and all routes.
func NewRouter(a *API) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}
	// Cross-origin requests are allowed from anywhere.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         3600,
	}))

	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/parking-spot", func(r chi.Router) {
		r.Get("/", a.spots.ListParkingSpotsHandler)
		r.Post("/", a.spots.CreateParkingSpotHandler)
		r.Get("/{id}", a.spots.GetParkingSpotHandler)
		r.Put("/{id}", a.spots.UpdateParkingSpotHandler)
		r.Delete("/{id}", a.spots.DeleteParkingSpotHandler)
	})

	if a.health != nil {
		r.Get("/healthz", a.healthHandler)
	}
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}
}

// healthHandler answers 200 when the database responds to a ping
func (a *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.health.Ping(ctx); err != nil {
		log.Printf("health check failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeMessage(w, http.StatusOK, "ok")
}
