package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type HealthServer struct {
	monitor *Monitor
	port    string
}

func NewHealthServer(monitor *Monitor, port string) *HealthServer {
	if port == "" || port == "0" {
		port = "8080"
	}
	return &HealthServer{
		monitor: monitor,
		port:    port,
	}
}

// Handler returns the router serving /health and /status.
func (h *HealthServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", h.healthHandler)
	r.Get("/status", h.statusHandler)
	return r
}

// Start serves in the background until ctx is cancelled.
func (h *HealthServer) Start(ctx context.Context) {
	server := &http.Server{
		Addr:              ":" + h.port,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infof("Health check server starting on port %s", h.port)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Health server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Health server shutdown: %v", err)
		}
	}()
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if h.monitor.IsHealthy() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK - %s", h.monitor.GetStatusSummary())
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "Service unhealthy - %s", h.monitor.GetStatusSummary())
	}
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s", h.monitor.GetStatusSummary())
}
