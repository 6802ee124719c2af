package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"room-chat/internal/auth"
	"room-chat/internal/chat"
	"room-chat/internal/config"
	"room-chat/internal/db"
	grpcclient "room-chat/internal/grpc"
	"room-chat/internal/handlers"
	"room-chat/internal/middleware"
	"room-chat/internal/observability"
	"room-chat/internal/rabbitmq"
	"room-chat/internal/repositories"
	"room-chat/internal/telemetry"
	"room-chat/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	database, err := db.Connect(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer func() {
		log.Info("closing database")
		_ = database.Close()
	}()

	roomRepo := repositories.NewRoomRepo(database)
	userRepo := repositories.NewUserRepo(database)

	store, closeStore, err := openMessageStore(cfg, database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	validator, closeAuth, err := newTokenValidator(cfg)
	if err != nil {
		return err
	}
	defer closeAuth()
	resolver := auth.NewResolver(validator, userRepo)

	publisher := rabbitmq.NewPublisher(log, cfg.AMQPURL, cfg.AMQPExchange)
	defer func() { _ = publisher.Close() }()
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, log)

	registry := chat.NewRegistry(log, cfg.SendQueueSize)
	service := chat.NewService(registry, roomRepo, store, userRepo, log, chat.Options{
		SendTimeout:   cfg.SendTimeout,
		MaxBodyLength: cfg.MaxMessageLength,
		Audit:         audit,
	})
	hub := ws.NewHub(service, log)
	wsHandler := ws.NewHandler(hub, resolver, cfg.ConnectionBuffer, log)
	roomHandler := handlers.NewRoomHandler(roomRepo, service)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(gin.Recovery())
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(resolver)

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/rooms/:room_id/messages", authMiddleware, roomHandler.GetRoomMessages)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.DeleteRoom)

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, registry, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", server.Addr, "store", cfg.MessageStore)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	hub.CloseAll(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", "error", err)
	}
	log.Info("server stopped cleanly")
	return nil
}

func openMessageStore(cfg config.Config, database *sqlx.DB, log *slog.Logger) (chat.MessageStore, func(), error) {
	if cfg.MessageStore != config.StoreBadger {
		return repositories.NewMessageRepo(database), func() {}, nil
	}

	bdb, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, nil, fmt.Errorf("badger opening failed: %w", err)
	}
	closeFn := func() {
		log.Info("closing badger")
		_ = bdb.Close()
	}
	return repositories.NewBadgerMessageStore(bdb, log), closeFn, nil
}

func newTokenValidator(cfg config.Config) (auth.TokenValidator, func(), error) {
	if cfg.AuthGRPCAddr == "" {
		return auth.NewJWTValidator(cfg.JWTSecret), func() {}, nil
	}

	conn, err := grpcclient.Dial(cfg.AuthGRPCAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to auth grpc: %w", err)
	}
	return grpcclient.NewAuthClient(conn), func() { _ = conn.Close() }, nil
}
