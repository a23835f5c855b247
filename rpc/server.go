// Package rpc exposes the pool node over a JSON HTTP API.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"lootpool/core"
	"lootpool/indexer"
	"lootpool/rpc/middleware"
)

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	RateLimit    middleware.RateLimit
	Auth         middleware.AuthConfig
	// Registry receives the HTTP collectors and backs /metrics. Nil uses the
	// default registry.
	Registry *prometheus.Registry
	Tracer   trace.Tracer
}

// Server routes HTTP requests to the node and the event mirror.
type Server struct {
	node    *core.Node
	mirror  *indexer.Mirror
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *middleware.Authenticator
	hub     *eventHub
	handler http.Handler
	http    *http.Server
}

// NewServer builds the router. mirror may be nil, in which case history
// queries answer 503.
func NewServer(node *core.Node, mirror *indexer.Mirror, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if node == nil {
		return nil, errors.New("rpc: node required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("lootpool/rpc")
	}
	s := &Server{
		node:   node,
		mirror: mirror,
		cfg:    cfg,
		logger: logger,
		auth:   middleware.NewAuthenticator(cfg.Auth, logger),
		hub:    newEventHub(),
	}
	node.Subscribe(s.hub)
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if s.cfg.Registry != nil {
		registerer, gatherer = s.cfg.Registry, s.cfg.Registry
	}
	obs := middleware.NewObservability(registerer, s.cfg.Tracer, s.logger)
	limiter := middleware.NewRateLimiter(s.cfg.RateLimit, s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: s.cfg.CORSOrigins}))
	r.Use(obs.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Get("/deck", s.handleDeck)
		r.Get("/fees", s.handleFees)
		r.Post("/userHistory", s.handleUserHistory)
		r.Post("/userBalances", s.handleUserBalances)
		r.Post("/currentUserState", s.handleCurrentUserState)
		r.Get("/events", s.handleEventStream)
		r.With(s.auth.Middleware(middleware.ScopeUser)).Post("/userAction", s.handleUserAction)
		r.With(s.auth.Middleware(middleware.ScopeOracle)).Post("/oracle/fulfill", s.handleOracleFulfill)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(s.auth.Middleware(middleware.ScopeAdmin))
		r.Post("/tier", s.handleSetTier)
		r.Post("/force-transfer", s.handleForceTransfer)
		r.Post("/remove", s.handleRemove)
		r.Post("/refund", s.handleAdminRefund)
		r.Post("/mint-credits", s.handleMintCredits)
		r.Post("/fee", s.handleRandomnessFee)
		r.Post("/key-hash", s.handleKeyHash)
		r.Post("/draw-fee", s.handleDrawFee)
		r.Post("/fee-recipient", s.handleFeeRecipient)
		r.Post("/delete-reference", s.handleDeleteReference)
		r.Post("/mint-assets", s.handleMintAssets)
		r.Post("/pause", s.handlePause)
		r.Get("/export/fulfillments", s.handleExportFulfillments)
	})
	return r
}

// ListenAndServe serves until ctx is canceled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           otelhttp.NewHandler(s.handler, "lootpool.rpc"),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server listening", slog.String("address", ln.Addr().String()))
		errCh <- s.http.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ok, err := s.node.Bootstrapped()
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "bootstrapping"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
