package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	auth "github.com/hanpama/contentgraph/internal/auth"
	config "github.com/hanpama/contentgraph/internal/config"
	docstore "github.com/hanpama/contentgraph/internal/docstore"
	eventbus "github.com/hanpama/contentgraph/internal/eventbus"
	logging "github.com/hanpama/contentgraph/internal/logging"
	metrics "github.com/hanpama/contentgraph/internal/metrics"
	otel "github.com/hanpama/contentgraph/internal/otel"
	resolvers "github.com/hanpama/contentgraph/internal/resolvers"
	server "github.com/hanpama/contentgraph/internal/server"
)

const shutdownTimeout = 15 * time.Second

// app is the wired process without its listener.
type app struct {
	handler http.Handler
	close   func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	bus := eventbus.New()
	unsubscribeLogs := logging.Subscribe(bus, logger)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.Subscribe(bus)
	}

	shutdownTracing, err := otel.Setup(ctx, bus, cfg.OTel.Endpoint, cfg.OTel.Service)
	if err != nil {
		return nil, errors.Wrap(err, "otel setup")
	}

	store, err := docstore.Open(ctx, cfg.StoreOptions(), logger.Named("store"), bus)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, errors.Wrap(err, "open store")
	}

	sch, rt, err := resolvers.Build(store, resolvers.WithMaxConcurrency(cfg.GraphQL.MaxConcurrency))
	if err != nil {
		store.Close()
		_ = shutdownTracing(ctx)
		return nil, errors.Wrap(err, "build schema")
	}

	sameSite, _ := cfg.Session.SameSiteMode()
	sessions := auth.NewManager(store, auth.Options{
		CookieName: cfg.Session.CookieName,
		Lifetime:   cfg.Session.Lifetime,
		Secure:     cfg.Session.Secure,
		SameSite:   sameSite,
	}, logger.Named("auth"))

	sopts := []server.Option{
		server.WithIdentity(sessions),
		server.WithEventBus(bus),
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithGraphiQL(cfg.Server.GraphiQL),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	gql, err := server.New(rt, sch, sopts...)
	if err != nil {
		store.Close()
		_ = shutdownTracing(ctx)
		return nil, errors.Wrap(err, "server init")
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, gql)
	if cfg.Server.GraphiQL {
		mux.Handle("/graphiql", server.GraphiQL(cfg.Server.Path))
	}
	sessions.Mount(mux)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	handler := server.Chain(mux,
		server.Observe(bus),
		server.CORS(cfg.Server.Origins),
		sessions.Attach,
	)

	return &app{
		handler: handler,
		close: func(ctx context.Context) error {
			var firstErr error
			if err := store.Close(); err != nil {
				firstErr = errors.Wrap(err, "close store")
			}
			if err := shutdownTracing(ctx); err != nil && firstErr == nil {
				firstErr = errors.Wrap(err, "shutdown tracing")
			}
			if m != nil {
				m.Close()
			}
			unsubscribeLogs()
			return firstErr
		},
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		_ = a.close(context.Background())
		return errors.Wrapf(err, "listen %s", cfg.Server.Addr)
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", cfg.Server.Path),
		zap.String("store", cfg.Store.Driver),
	)

	select {
	case err = <-errc:
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(sctx); serr != nil && err == nil {
		err = errors.Wrap(serr, "http shutdown")
	}
	if cerr := a.close(sctx); cerr != nil && err == nil {
		err = cerr
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}
