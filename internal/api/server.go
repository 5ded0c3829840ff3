// internal/api/server.go
// Provides StartServer, which wires NATS, the room, the hub and the HTTP routes together.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/erilali/duet/internal/auth"
	"github.com/erilali/duet/internal/config"
	"github.com/erilali/duet/internal/hub"
	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/session"
	"github.com/nats-io/nats.go"
)

const shutdownTimeout = 10 * time.Second

// StartServer runs the relay until ctx is cancelled.
func StartServer(ctx context.Context, cfg config.Config, serverLogger *logger.Logger) error {
	nc := connectNATS(cfg, serverLogger)
	if nc != nil {
		defer nc.Drain()
	}

	var sink *hub.NATSSink
	var status StatusReporter
	if cfg.NatsEnabled {
		sink = hub.NewNATSSink(nc, cfg.NatsSubjectPrefix, logger.NewLogger("nats"))
		status = sink
	}

	roomOpts := session.Options{
		Policy:           cfg.Policy,
		MaxMessageLength: cfg.MaxMessageLength,
		Logger:           logger.NewLogger("room"),
	}
	if sink != nil {
		roomOpts.Sink = sink
	}
	room := session.NewRoom(roomOpts)

	h := hub.NewHub(room, hub.Options{
		MaxFrameBytes: cfg.MaxFrameBytes,
		SendBuffer:    cfg.SendBuffer,
		Logger:        logger.NewLogger("hub"),
	})

	tokens, err := auth.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("session tokens: %w", err)
	}
	if cfg.SessionSecret == "" {
		serverLogger.Warn("SESSION_SECRET not set. Sessions will not survive a restart.")
	}

	srv, err := NewServer(Deps{
		Room:       room,
		Hub:        h,
		Tokens:     tokens,
		SessionTTL: cfg.SessionTTL,
		NATS:       status,
		Logger:     logger.NewLogger("api"),
	})
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go h.Run(hubCtx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		serverLogger.WithFields(map[string]interface{}{
			"addr":   cfg.Addr,
			"policy": string(cfg.Policy),
		}).Info("Server started")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ListenAndServe: %w", err)
	case <-ctx.Done():
	}

	serverLogger.Info("Shutting down")
	// Hijacked websocket connections are not tracked by Shutdown; stopping the
	// hub closes them.
	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// connectNATS returns nil when NATS is disabled or unreachable; the relay runs
// without publishing in that case.
func connectNATS(cfg config.Config, serverLogger *logger.Logger) *nats.Conn {
	if !cfg.NatsEnabled {
		serverLogger.Info("NATS disabled")
		return nil
	}
	natsURL := cfg.NatsURL
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	serverLogger.Infof("Connecting to NATS at %s", natsURL)
	nc, err := nats.Connect(natsURL,
		nats.Name("duet"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				serverLogger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			serverLogger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		serverLogger.Errorf("Error connecting to NATS: %v", err)
		serverLogger.Warn("Running without NATS connection. Room activity will not be published.")
		return nil
	}
	serverLogger.Info("Successfully connected to NATS")
	return nc
}
