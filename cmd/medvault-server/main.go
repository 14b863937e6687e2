package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/domain/accesslog"
	"github.com/medvault/medvault/internal/domain/consent"
	"github.com/medvault/medvault/internal/domain/emergency"
	"github.com/medvault/medvault/internal/domain/policy"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/db"
	"github.com/medvault/medvault/internal/platform/middleware"
)

func main() {
	root := &cobra.Command{
		Use:   "medvault-server",
		Short: "Consent management and emergency access service",
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger().Level(zerolog.DebugLevel)
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			cancel()
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.HTTPErrorHandler = middleware.ErrorHandler(log)

			e.Use(middleware.Recovery(log))
			e.Use(middleware.RequestID())
			e.Use(middleware.Logger(log))
			e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
				AllowOrigins: cfg.CORSOrigins,
				AllowMethods: []string{http.MethodGet, http.MethodPost},
				AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
			}))

			var authMW echo.MiddlewareFunc
			if cfg.IsDev() && cfg.AuthIssuer == "" && cfg.AuthDevSecret == "" {
				authMW = auth.DevAuthMiddleware()
			} else {
				authMW = auth.JWTMiddleware(auth.JWTConfig{
					Issuer:     cfg.AuthIssuer,
					Audience:   cfg.AuthAudience,
					JWKSURL:    cfg.AuthJWKSURL,
					SigningKey: []byte(cfg.AuthDevSecret),
				})
			}

			e.GET("/healthz", func(c echo.Context) error {
				if err := pool.Ping(c.Request().Context()); err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
				}
				return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
			})

			api := e.Group("/api/v1", authMW)

			auditSvc := accesslog.NewService(accesslog.NewPGRepository(pool))
			consentSvc := consent.NewService(consent.NewPGRepository(pool))
			evaluator := policy.NewEvaluator(consentSvc, auditSvc, log)
			gate := emergency.NewGate(auditSvc, log)

			consent.NewHandler(consentSvc).RegisterRoutes(api)
			accesslog.NewHandler(auditSvc).RegisterRoutes(api)
			policy.NewHandler(evaluator).RegisterRoutes(api)
			emergency.NewHandler(gate).RegisterRoutes(api)

			go func() {
				log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
				if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server stopped")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, cfg.MigrationsDir).Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = fmt.Sprintf("applied %s", s.AppliedAt.Format(time.RFC3339))
				}
				fmt.Printf("%03d %-30s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	})

	return migrate
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, pool, nil
}
