package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tumelo/waflow/internal/ai"
	"github.com/tumelo/waflow/internal/bot"
	"github.com/tumelo/waflow/internal/httpapi"
	"github.com/tumelo/waflow/internal/storage"
	"github.com/tumelo/waflow/internal/transport"
	"github.com/tumelo/waflow/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Reply service client
	replier := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		Timeout: cfg.AI.Timeout,
	})

	// Router with global gate
	state := bot.NewState(cfg.WhatsApp.AdminJID)
	router := bot.NewRouter(store, replier, state, cfg.Followup.Interval, logger)

	// WhatsApp transport
	dialer, err := transport.NewWhatsmeowDialer(ctx, cfg.WhatsApp.AuthDBPath, logger)
	if err != nil {
		logger.Fatal("Failed to open WhatsApp credential store", zap.Error(err))
	}

	manager := bot.NewManager(bot.ManagerConfig{
		Dialer:           dialer,
		Credentials:      dialer.CredentialStore(),
		Router:           router,
		Store:            store,
		Logger:           logger,
		FollowupInterval: cfg.Followup.Interval,
		FollowupMessage:  cfg.Followup.Message,
		ReconnectDelay:   cfg.WhatsApp.ReconnectDelay,
	})

	// Administrative HTTP surface
	api := httpapi.NewServer(store, replier, manager, logger)
	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: api.Routes()}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	defer httpServer.Shutdown(context.Background())

	// Run the session until shutdown or logout
	if err := manager.Run(ctx); err != nil {
		switch {
		case errors.Is(err, bot.ErrLoggedOut):
			logger.Warn("Session logged out, restart and re-pair to continue")
		case errors.Is(err, context.Canceled):
			logger.Info("Shutting down")
		default:
			logger.Fatal("Session error", zap.Error(err))
		}
	}
}
