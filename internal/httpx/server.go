package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
)

// Server — HTTP intake поверх управляющего сервиса заказов.
type Server struct {
	httpServer *http.Server
	logger     *log.Entry
}

// NewServer собирает HTTP сервер intake API.
func NewServer(addr string, service *orders.Service, healthHandler *health.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(service, healthHandler),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.WithField("component", "http-server"),
	}
}

// NewRouter собирает chi-роутер intake API и служебные endpoint'ы.
func NewRouter(service *orders.Service, healthHandler *health.Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	handler := newOrderHandler(service)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", handler.createOrder)
		r.Get("/orders/{orderID}", handler.getOrder)
		r.Put("/orders/{orderID}/status", handler.updateStatus)
		r.Delete("/orders/{orderID}", handler.cancelOrder)
		r.Get("/users/{userID}/orders", handler.listUserOrders)
	})

	router.Get("/livez", health.LivenessHandler)
	if healthHandler != nil {
		router.Get("/healthz", healthHandler.ServeHTTP)
		router.Get("/readyz", healthHandler.ReadinessHandler)
	}
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// Start запускает HTTP сервер, блокируясь до его остановки.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("http server started")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping")
	return s.httpServer.Shutdown(ctx)
}
