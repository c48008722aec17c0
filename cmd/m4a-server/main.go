package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/m4a/m4a/internal/config"
	"github.com/m4a/m4a/internal/domain/claims"
	"github.com/m4a/m4a/internal/domain/directory"
	"github.com/m4a/m4a/internal/domain/registry"
	"github.com/m4a/m4a/internal/domain/submitter"
	"github.com/m4a/m4a/internal/platform/auth"
	"github.com/m4a/m4a/internal/platform/ledger"
	"github.com/m4a/m4a/internal/platform/metrics"
	"github.com/m4a/m4a/internal/platform/middleware"
	"github.com/m4a/m4a/internal/protocol"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "m4a-server",
		Short: "Medicare4All claims adjudication API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the claims API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres ledger schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.LedgerBackend != "postgres" {
				return fmt.Errorf("migrate only applies to the postgres backend, LEDGER_BACKEND=%q", cfg.LedgerBackend)
			}

			ctx := context.Background()
			pg, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an account address",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("address")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if addr == "" {
				return fmt.Errorf("--address is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.Sign(cfg.AuthSecret, protocol.Address(addr), ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().String("address", "", "Account address to embed in the token")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case "memory":
		return ledger.NewMemory(), nil
	case "leveldb":
		return ledger.OpenLevelDB(cfg.LedgerPath)
	case "postgres":
		pg, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Ledger
	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open ledger")
	}
	defer store.Close()
	logger.Info().Str("backend", cfg.LedgerBackend).Msg("ledger open")

	// Metrics
	var met *metrics.Metrics
	if cfg.MetricsOn {
		met = metrics.New()
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if met != nil {
		e.Use(met.Middleware())
	}

	// Health check
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if met != nil {
		e.GET("/metrics", met.Handler())
	}

	// API group: every claims endpoint requires a caller identity
	apiV1 := e.Group("/api/v1")
	apiV1.Use(auth.Middleware(cfg.AuthSecret, cfg.IsDev()))

	// Domain services share one store so cross-domain operations stay in a
	// single transaction.
	regSvc := registry.NewService(store)
	regHandler := registry.NewHandler(regSvc)
	regHandler.RegisterRoutes(apiV1)

	dirSvc := directory.NewService(store)
	dirHandler := directory.NewHandler(dirSvc)
	dirHandler.RegisterRoutes(apiV1)

	subSvc := submitter.NewService(store)
	subHandler := submitter.NewHandler(subSvc)
	subHandler.RegisterRoutes(apiV1)

	claimsSvc := claims.NewService(store, logger, met, claims.Config{
		MaxQueueSize: cfg.QueueMaxSize,
	})
	claimsHandler := claims.NewHandler(claimsSvc)
	claimsHandler.RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	return nil
}
