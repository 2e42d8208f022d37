package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/config"
	relaygrpc "github.com/weiawesome/wes-io-collab/collab-relay/internal/grpc"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/handler"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/hub"
	"github.com/weiawesome/wes-io-collab/collab-relay/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/pubsub"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "collab-relay"})
	logger := pkglog.L()

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.New().String()[:8]
	}
	// Every relay instance must see every room message.
	if cfg.PubSub.Kafka.GroupID == "" {
		cfg.PubSub.Kafka.GroupID = "collab-relay-" + cfg.Server.InstanceID
	}

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("instance_id", cfg.Server.InstanceID).
		Str("pubsub", cfg.PubSub.Driver).
		Msg("starting collab-relay")

	// Create broker client
	dialCtx, dialCancel := context.WithTimeout(context.Background(), 10*time.Second)
	broker, err := pubsub.NewPubSub(dialCtx, cfg.PubSub)
	dialCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pubsub client")
	}
	defer broker.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := broker.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Msg("broker not reachable yet, messages will be rejected until it is")
	}
	pingCancel()

	// Create hub
	h := hub.NewHub(hub.Config{
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		WriteWait:      cfg.WebSocket.WriteWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		SendBuffer:     cfg.WebSocket.SendBuffer,
	})
	go h.Run()

	// Create service and start broker fan-out
	svc := service.NewRelayService(h, broker, service.Config{
		PublishTimeout:   cfg.Relay.PublishTimeout,
		ResubscribeDelay: cfg.Relay.ResubscribeDelay,
	})

	ctx, cancel := context.WithCancel(context.Background())

	if err := svc.Start(ctx); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to start relay fan-out")
	}

	// Start gRPC health server
	grpcAddr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	healthServer, err := relaygrpc.StartHealthServer(grpcAddr, broker, logger)
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("failed to start grpc health server")
	}
	go healthServer.Watch(ctx, 5*time.Second)

	// Create handlers
	wsHandler := handler.NewWSHandler(h, svc)
	httpHandler := handler.NewHTTPHandler(h, broker)

	// Setup routes
	router := mux.NewRouter()
	router.HandleFunc("/ws", wsHandler.HandleWebSocket).Methods("GET")
	router.HandleFunc("/health", httpHandler.HealthCheck).Methods("GET")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     pkglog.HTTPMiddleware(logger)(router),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("collab-relay listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down collab-relay")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel()     // 1. stop broker fan-out and health watch
		<-svc.Done() // 2. wait for fan-out goroutines
		<-healthServer.Done()

		h.Stop() // 3. close all WS clients, stop Hub.Run()

		// 4. stop listeners
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		var g errgroup.Group
		g.Go(func() error {
			return server.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			healthServer.Stop()
			return nil
		})
		if err := g.Wait(); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("collab-relay stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
