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

	"github.com/windowpeers/backend/internal/bus"
	"github.com/windowpeers/backend/internal/config"
	"github.com/windowpeers/backend/internal/logging"
	"github.com/windowpeers/backend/internal/peers"
	"github.com/windowpeers/backend/internal/protocol"
	"github.com/windowpeers/backend/internal/router"
	"github.com/windowpeers/backend/internal/sentry"
	"github.com/windowpeers/backend/internal/session"
	"github.com/windowpeers/backend/internal/ws"
)

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := sentry.Init(cfg.SentryDSN, cfg.SentryEnvironment); err != nil {
		slog.Error("failed to initialize sentry", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := peers.Events{Prefix: cfg.EventPrefix}
	b := bus.New(cfg.SendBufferSize)
	b.Observe(peers.NewPresenceNotifier(b, events))

	identity := peers.NewIdentityService(nil)
	groups := peers.NewGroups(b, events)
	dispatcher := protocol.NewDispatcher(events, protocol.Components{
		Groups:     groups,
		Watch:      peers.NewWatchMaintainer(b),
		Correlator: peers.NewCorrelator(b, events),
		Relay:      peers.NewRelay(b, events),
	})
	sessions := session.NewStore(cfg.SessionSecret, cfg.SessionCookieName, cfg.SessionDuration, cfg.SessionSecureCookie)

	socket := ws.NewHandler(b, identity, groups, dispatcher, sessions, ws.Options{
		WriteTimeout:      cfg.WriteTimeout,
		PingInterval:      cfg.PingInterval,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
		AllowedOrigins:    cfg.CORSAllowedOrigins,
	})

	r := router.New(ctx, cfg, router.Deps{
		Bus:      b,
		Identity: identity,
		Groups:   groups,
		Sessions: sessions,
		Socket:   socket,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server", slog.String("addr", addr), slog.String("event_prefix", cfg.EventPrefix))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
