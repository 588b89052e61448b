// Package server exposes the warehouse over a JSON HTTP API. Handlers are
// thin: validation and (de)serialization only, all semantics live in the
// warehouse and storage layers.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kvasst/depot/internal/config"
	"github.com/kvasst/depot/internal/logging"
	"github.com/kvasst/depot/internal/storage"
	"github.com/kvasst/depot/internal/warehouse"
)

// Server is the HTTP front end.
type Server struct {
	cfg       *config.Config
	engine    *storage.Engine
	warehouse *warehouse.Service
	srv       *http.Server
	log       *slog.Logger
	reqSeq    atomic.Uint64
}

// New builds the server and its routes.
func New(cfg *config.Config, engine *storage.Engine, wh *warehouse.Service) *Server {
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		warehouse: wh,
		log:       logging.Component("server"),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/items", s.handleListItems)
	mux.HandleFunc("POST /api/v1/items", s.handleRegisterItem)
	mux.HandleFunc("GET /api/v1/items/{id}", s.handleGetItem)
	mux.HandleFunc("PATCH /api/v1/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("POST /api/v1/items/{id}/move", s.handleMoveItem)
	mux.HandleFunc("DELETE /api/v1/items/{id}", s.handleDeleteItem)

	mux.HandleFunc("GET /api/v1/boxes", s.handleListBoxes)
	mux.HandleFunc("POST /api/v1/boxes", s.handleCreateBox)
	mux.HandleFunc("GET /api/v1/boxes/{id}", s.handleGetBox)
	mux.HandleFunc("POST /api/v1/boxes/{id}/move", s.handleMoveBox)
	mux.HandleFunc("DELETE /api/v1/boxes/{id}", s.handleDeleteBox)

	mux.HandleFunc("GET /api/v1/places", s.handleListPlaces)
	mux.HandleFunc("POST /api/v1/places", s.handleCreatePlace)
	mux.HandleFunc("GET /api/v1/places/{id}", s.handleGetPlace)
	mux.HandleFunc("DELETE /api/v1/places/{id}", s.handleDeletePlace)

	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("POST /api/v1/orders", s.handleOpenOrder)
	mux.HandleFunc("GET /api/v1/orders/{id}", s.handleGetOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/status", s.handleOrderStatus)
	mux.HandleFunc("POST /api/v1/orders/{id}/close", s.handleCloseOrder)
	mux.HandleFunc("POST /api/v1/orders/{id}/items", s.handleAddOrderItem)
	mux.HandleFunc("DELETE /api/v1/orders/{id}", s.handleDeleteOrder)

	mux.HandleFunc("GET /api/v1/users", s.handleListUsers)
	mux.HandleFunc("POST /api/v1/users", s.handleCreateUser)
	mux.HandleFunc("GET /api/v1/users/{id}", s.handleGetUser)
	mux.HandleFunc("DELETE /api/v1/users/{id}", s.handleDeleteUser)

	mux.HandleFunc("GET /api/v1/{kind}/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/{kind}/{id}/history/export", s.handleHistoryExport)

	mux.HandleFunc("POST /api/v1/serials", s.handleGenerateSerial)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.Handle("GET /metrics", promhttp.HandlerFor(
		engine.Metrics().Registry(), promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.logRequests(mux),
		ReadTimeout:       cfg.Server.RequestTimeout,
		WriteTimeout:      cfg.Server.RequestTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// logRequests tags every request with a sequence id, bounds the body size,
// and logs the request with its id on completion.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.ContextWithRequestID(r.Context(), s.reqSeq.Add(1))
		r = r.WithContext(ctx)
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)
		next.ServeHTTP(w, r)
		logging.WithContext(ctx).Debug("request",
			"component", "server",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
