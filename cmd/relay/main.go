package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"translation-relay/internal/audit"
	"translation-relay/internal/bootstrap"
	"translation-relay/internal/config"
	"translation-relay/internal/language"
	"translation-relay/internal/relay"
	"translation-relay/internal/server"
	"translation-relay/internal/session"
	"translation-relay/internal/translation"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(".env", "../.env")
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	langs, err := language.NewDirectory(cfg.Languages.Supported)
	if err != nil {
		slog.Error("failed to build language directory", "err", err)
		os.Exit(1)
	}
	if err := langs.Validate(cfg.Languages.DefaultFrom, cfg.Languages.DefaultTo); err != nil {
		slog.Warn("default language pair is not in the supported set", "err", err)
	}

	// ---- Clients ----
	llm, err := bootstrap.CompletionClient(ctx, cfg.Completion)
	if err != nil {
		slog.Error("failed to create completion client", "err", err)
		os.Exit(1)
	}
	translator, err := translation.NewTranslator(llm,
		translation.WithModel(cfg.Completion.Model),
		translation.WithLogger(logger.With("component", "translation")),
	)
	if err != nil {
		slog.Error("failed to create translator", "err", err)
		os.Exit(1)
	}
	slog.Info("translation client initialized", "model", cfg.Completion.Model, "timeout", cfg.Completion.Timeout.String())

	registry := session.NewRegistry(session.WithLogger(logger.With("component", "session")))
	sink := audit.NewSink(
		audit.WithLogger(logger.With("component", "audit")),
		audit.WithStore(bootstrap.AuditStoreOpener(cfg.Audit)),
	)

	// ---- Handler ----
	ws, err := relay.NewHandler(registry, translator, sink,
		relay.WithLogger(logger.With("component", "relay")),
		relay.WithDefaultPair(cfg.Languages.DefaultFrom, cfg.Languages.DefaultTo),
		relay.WithIdleTimeout(cfg.Session.IdleTimeout),
	)
	if err != nil {
		slog.Error("failed to create relay handler", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.NewRouter(ws),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go registry.Sweep(ctx, cfg.Session.SweepInterval, cfg.Session.MaxDuration)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("relay server starting", "addr", srv.Addr, "tls", cfg.Server.TLSEnabled(), "languages", langs.Codes())
		if cfg.Server.TLSEnabled() {
			errCh <- srv.ListenAndServeTLS(cfg.Server.TLSCertPath, cfg.Server.TLSKeyPath)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "err", err)
	}
	if err := sink.Close(shutdownCtx); err != nil {
		slog.Warn("audit writes still pending at shutdown", "err", err)
	}
	slog.Info("relay server stopped")
}
