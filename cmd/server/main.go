// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package main runs a WorkConnect node.
//
// A node serves three websocket endpoints for the marketplace web client:
//
//	/ws/chat/{conversationID}  conversation messages, read receipts, typing
//	/ws/presence               online/offline transitions of every user
//	/ws/notifications          new-message notifications for the caller
//
// Startup order:
//
//  1. Configuration (koanf: defaults, optional YAML file, environment)
//  2. DuckDB system of record
//  3. Presence store (DuckDB or Badger) behind a circuit breaker
//  4. Connection hub, authenticator and chat gateway
//  5. Cross-node relay over NATS, when enabled
//  6. Supervisor tree: data, realtime and api layers
//
// SIGINT and SIGTERM cancel the tree. Open connections are closed by the
// hub, pending presence writes are drained and the database is
// checkpointed before exit.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/workconnect/internal/api"
	"github.com/tomtom215/workconnect/internal/auth"
	"github.com/tomtom215/workconnect/internal/chat"
	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/database"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/presence"
	"github.com/tomtom215/workconnect/internal/relay"
	"github.com/tomtom215/workconnect/internal/supervisor"
	"github.com/tomtom215/workconnect/internal/supervisor/services"
	ws "github.com/tomtom215/workconnect/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Str("presence_store", cfg.Presence.Store).
		Bool("relay", cfg.Relay.Enabled).
		Msg("Starting WorkConnect")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("WorkConnect stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Final checkpoint failed")
		}
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	store, closeStore, err := openPresenceStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	tracker := presence.NewTracker(presence.NewBreakerStore(store, &cfg.Presence), cfg.Presence.WriteTimeout)
	if cfg.Presence.ReconcileOnStartup {
		n, err := tracker.Reconcile(context.Background())
		if err != nil {
			logging.Warn().Err(err).Msg("Presence reconciliation failed")
		} else {
			logging.Info().Int("reset", n).Msg("Stale presence records reset")
		}
	}

	hub := ws.NewHub(cfg.Realtime.RegistryShards)
	hub.SetMetricsInterval(cfg.Realtime.MetricsInterval)

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}
	users := auth.NewCachedDirectory(db, cfg.Security.UserCacheSize, cfg.Security.UserCacheTTL)
	resolver := auth.NewAuthenticator(tokens, users)
	gateway := chat.NewGateway(db, resolver, hub, tracker, chat.OptionsFromConfig(&cfg.Realtime, &cfg.Media))

	rel, broker, err := openRelay(cfg, hub)
	if err != nil {
		return err
	}
	if rel != nil {
		hub.SetRelay(rel)
		defer func() {
			if err := rel.Close(); err != nil {
				logging.Warn().Err(err).Msg("Error closing relay")
			}
		}()
	}
	if broker != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := broker.Shutdown(ctx); err != nil {
				logging.Warn().Err(err).Msg("Error stopping embedded NATS")
			}
		}()
	}

	handler := api.NewHandler(cfg, gateway, resolver, hub, db)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security)))
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	tree.AddDataService(services.NewPresenceDrainService(tracker, cfg.Presence.WriteTimeout))
	tree.AddRealtimeService(services.NewHubService(hub))
	if rel != nil {
		tree.AddRealtimeService(services.NewRelayService(rel))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	for err := range tree.ServeBackground(ctx) {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return nil
}

// openPresenceStore returns the durable presence backend and its closer.
func openPresenceStore(cfg *config.Config, db *database.DB) (presence.Store, func(), error) {
	if cfg.Presence.Store != "badger" {
		return db, func() {}, nil
	}
	bs, err := presence.OpenBadgerStore(cfg.Presence.BadgerPath)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Str("path", cfg.Presence.BadgerPath).Msg("Badger presence store opened")
	return bs, func() {
		if err := bs.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing presence store")
		}
	}, nil
}

// openRelay connects the cross-node relay. Both results are nil when the
// relay is disabled; broker is non-nil only in embedded mode.
func openRelay(cfg *config.Config, hub *ws.Hub) (*relay.Relay, *relay.EmbeddedBroker, error) {
	if !cfg.Relay.Enabled {
		return nil, nil, nil
	}

	url := cfg.Relay.URL
	var broker *relay.EmbeddedBroker
	if cfg.Relay.Embedded {
		var err error
		broker, err = relay.StartEmbeddedBroker(cfg.Relay.EmbeddedHost, cfg.Relay.EmbeddedPort)
		if err != nil {
			return nil, nil, err
		}
		url = broker.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS started")
	}

	rel, err := relay.NewNATS(&cfg.Relay, url, hub, logging.NewWatermillLogger())
	if err != nil {
		if broker != nil {
			_ = broker.Shutdown(context.Background())
		}
		return nil, nil, err
	}
	logging.Info().Str("node_id", rel.NodeID()).Str("url", url).Msg("Relay connected")
	return rel, broker, nil
}
