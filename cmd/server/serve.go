package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csv-chat/backend/internal/agent"
	"github.com/csv-chat/backend/internal/api"
	"github.com/csv-chat/backend/internal/chat"
	"github.com/csv-chat/backend/internal/config"
	"github.com/csv-chat/backend/internal/logging"
	"github.com/csv-chat/backend/internal/session"
	"github.com/csv-chat/backend/internal/upload"
	"github.com/csv-chat/backend/internal/web"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, sessions, janitorDone := newServer(ctx, cfg, logger)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	logger.Info("CSV Chat server starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("config", configPath),
		zap.String("listen", "http://"+cfg.GetServerAddr()),
		zap.String("model", cfg.Agent.Model),
		zap.Bool("embedded_ui", web.HasEmbeddedFiles()))

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		sessions.Close()
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", zap.Error(err))
	}
	<-janitorDone
	sessions.Close()
	return nil
}

// newServer wires the session manager, the agent factory and the HTTP
// routes. The janitor stops when ctx is cancelled.
func newServer(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*echo.Echo, *session.Manager, <-chan struct{}) {
	sessions := session.NewManager(session.OptionsFromConfig(cfg), logger)
	janitorDone := sessions.StartJanitor(ctx, cfg.CleanupInterval(), cfg.SessionTimeout())

	factory := agent.NewEinoFactory(agent.OptionsFromConfig(cfg), logger)
	chatSvc := chat.NewService(sessions, factory, chat.Options{
		AgentTimeout:      cfg.AgentTimeout(),
		MaxConcurrentAsks: cfg.Agent.MaxConcurrentAsks,
		MaxSummaryColumns: cfg.Limits.MaxSummaryColumns,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, cfg, logger)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions: sessions,
		Chat:     chatSvc,
		Limits: upload.Limits{
			MaxFiles:     cfg.Limits.MaxFiles,
			MaxFileBytes: cfg.Limits.MaxFileBytes,
		},
		Version: Version,
	}))

	if err := web.RegisterStaticRoutes(e); err != nil {
		logger.Warn("Failed to register UI routes", zap.Error(err))
	}

	return e, sessions, janitorDone
}
