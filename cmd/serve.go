package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/embykit/filem/internal/config"
	"github.com/embykit/filem/internal/llm"
	"github.com/embykit/filem/internal/log"
	"github.com/embykit/filem/internal/observability"
	"github.com/embykit/filem/internal/orch"
	"github.com/embykit/filem/internal/security"
	"github.com/embykit/filem/internal/server"
	"github.com/embykit/filem/internal/session"
	"github.com/embykit/filem/internal/tools"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the session-oriented HTTP server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes and starts the HTTP server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP server", "version", AppVersion)

	if cfg.Trace.Enabled {
		shutdownTracing, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Trace.Endpoint,
			Environment: cfg.Trace.Environment,
			ServiceName: cfg.Trace.ServiceName,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("flushing traces", "error", err)
			}
		}()
	}

	client, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.ModelName,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	pathVal, err := security.NewPathValidator(cfg.WorkspaceRoots)
	if err != nil {
		return fmt.Errorf("creating path validator: %w", err)
	}
	files, err := tools.NewFiles(pathVal, logger)
	if err != nil {
		return fmt.Errorf("creating file toolset: %w", err)
	}
	kit, err := tools.NewKit(logger)
	if err != nil {
		return fmt.Errorf("creating tool kit: %w", err)
	}
	if err := files.Register(kit); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	// Model calls are paced process-wide across all sessions.
	limiter := rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)

	registry, err := session.NewRegistry(func(s *session.Session) (*orch.Orchestrator, error) {
		return orch.New(orch.Config{
			Client:   client,
			Kit:      kit,
			Logger:   logger,
			MaxTurns: cfg.MaxTurns,
			Limiter:  limiter,
			Notifier: s,
		})
	}, logger)
	if err != nil {
		return fmt.Errorf("creating session registry: %w", err)
	}
	defer registry.CloseAll()

	apiServer, err := server.New(server.Config{
		Registry: registry,
		Kit:      kit,
		Logger:   logger,
		Name:     "filem",
		Version:  AppVersion,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"model", cfg.ModelName,
		"workspace_roots", pathVal.Roots(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
