package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ninjahq/ninja-backend/internal/billing"
	"github.com/ninjahq/ninja-backend/internal/cache"
	"github.com/ninjahq/ninja-backend/internal/config"
	"github.com/ninjahq/ninja-backend/internal/logging"
	"github.com/ninjahq/ninja-backend/internal/metering"
	"github.com/ninjahq/ninja-backend/internal/store"
)

// Server wires the billing core into the HTTP surface.
type Server struct {
	cache   *cache.Manager
	pre     *billing.Preprocessor
	engine  *billing.Engine
	private bool
	version string

	clock func() time.Time
}

// Deps holds the collaborators injected into the server.
type Deps struct {
	Config  *config.Config
	Store   store.Store
	Cache   *cache.Manager
	Meter   metering.Sender // nil disables metering
	Version string

	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

// NewServer builds the billing pipeline, preprocessor, and writeback engine
// from deps.
func NewServer(deps Deps) *Server {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	pipeline := &billing.Pipeline{
		Cache:        deps.Cache,
		GracePeriod:  deps.Config.GracePeriod,
		LegacyCutoff: deps.Config.LegacyCutoff,
		Now:          clock,
	}
	return &Server{
		cache: deps.Cache,
		pre: &billing.Preprocessor{
			Pipeline: pipeline,
			Store:    deps.Store,
			Private:  deps.Config.PrivateBackend,
		},
		engine: &billing.Engine{
			Store:   deps.Store,
			Cache:   deps.Cache,
			Meter:   deps.Meter,
			Private: deps.Config.PrivateBackend,
			Now:     clock,
		},
		private: deps.Config.PrivateBackend,
		version: deps.Version,
		clock:   clock,
	}
}

func (s *Server) now() time.Time {
	return s.clock()
}

// Endpoints returns the tool endpoint table with its billing flags.
func (s *Server) Endpoints() []Endpoint {
	return []Endpoint{
		{Method: http.MethodPost, Path: "/api/authorize",
			Flags:   billing.EndpointFlags{Security: true, Moniker: "authorize"},
			Handler: s.handleAuthorize},
		{Method: http.MethodPost, Path: "/api/syncIds",
			Flags:   billing.EndpointFlags{Security: true, UsageLogging: true, Moniker: "syncIds"},
			Handler: s.handleSyncIDs},
		{Method: http.MethodPost, Path: "/api/getNext",
			Flags:   billing.EndpointFlags{Security: true, UsageLogging: true, Moniker: "getNext"},
			Handler: s.handleGetNext},
		{Method: http.MethodPost, Path: "/api/storeAssignment",
			Flags:   billing.EndpointFlags{Security: true, UsageLogging: true, Moniker: "storeAssignment"},
			Handler: s.handleStoreAssignment},
		{Method: http.MethodPost, Path: "/api/ping",
			Flags:   billing.EndpointFlags{Billing: true, Moniker: "ping"},
			Handler: s.handlePing},
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	for _, ep := range s.Endpoints() {
		mux.Handle(ep.Path, s.handle(ep))
	}
	return mux
}

// Run starts the billing backend with graceful shutdown.
func Run(ctx context.Context, version string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "billing-backend",
	})
	log.Info().Str("version", version).Bool("private", cfg.PrivateBackend).Msg("Starting Ninja billing backend")

	blobStore, err := store.NewSQLite(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	defer func() {
		if err := blobStore.Close(); err != nil {
			log.Warn().Err(err).Msg("blob store close failed")
		}
	}()

	var meter metering.Sender
	if cfg.StripeSecretKey != "" {
		meter = metering.NewStripe(cfg.StripeSecretKey)
		log.Info().Msg("PAYG metering enabled (Stripe)")
	} else {
		log.Info().Msg("PAYG metering disabled (set STRIPE_SECRET_KEY to enable)")
	}

	srv := NewServer(Deps{
		Config:  cfg,
		Store:   blobStore,
		Cache:   cache.New(blobStore, cache.WithTTL(cfg.CacheTTL)),
		Meter:   meter,
		Version: version,
	})

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
