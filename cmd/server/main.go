package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheettools/internal/config"
	"github.com/JonMunkholm/sheettools/internal/logging"
	"github.com/JonMunkholm/sheettools/internal/ratelimit"
	"github.com/JonMunkholm/sheettools/internal/sheet"
	"github.com/JonMunkholm/sheettools/internal/transliterate"
	"github.com/JonMunkholm/sheettools/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"env", cfg.App.Env,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"rate_limit_store", cfg.Rate.Store,
		"upstream_configured", cfg.Upstream.APIKey != "",
	)

	// Background jobs stop before the server shuts down.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	limiter, closeStore, err := newRateLimiter(jobCtx, cfg)
	if err != nil {
		slog.Error("failed to set up rate limiting", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	if limiter != nil {
		go limiter.RunPruner(jobCtx, cfg.Rate.PruneInterval)
	}

	conversions := sheet.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	slog.Info("tools registered", "count", sheet.ToolCount())

	server := web.NewServer(cfg, web.Deps{
		Transliterator: newTransliterator(cfg),
		RateLimiter:    limiter,
		Conversions:    conversions,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for active conversions to complete (with timeout)
		if status := conversions.Status(); status.Active > 0 {
			slog.Info("waiting for conversions to complete", "active", status.Active)
			if err := conversions.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newTransliterator builds the proxy service. Without an API key the
// service still starts and reports "Server not configured" per request.
func newTransliterator(cfg *config.Config) *transliterate.Service {
	var gen transliterate.Generator
	if cfg.Upstream.APIKey != "" {
		gen = transliterate.NewGeminiClient(&http.Client{}, cfg.Upstream.Endpoint, cfg.Upstream.Model, cfg.Upstream.APIKey)
	} else {
		slog.Warn("GOOGLE_API_KEY is not set; transliteration requests will fail")
	}

	return transliterate.NewService(gen, transliterate.Options{
		Timeout:           cfg.Upstream.Timeout,
		RequestsPerSecond: float64(cfg.Upstream.RequestsPerSecond),
		Burst:             cfg.Upstream.Burst,
		ExposeDetails:     !cfg.App.IsProduction(),
	})
}

// newRateLimiter returns nil when rate limiting is disabled. The returned
// func releases the store's resources.
func newRateLimiter(ctx context.Context, cfg *config.Config) (*ratelimit.Limiter, func(), error) {
	if !cfg.Rate.Enabled {
		slog.Warn("rate limiting disabled")
		return nil, func() {}, nil
	}

	policy := ratelimit.Policy{Window: cfg.Rate.Window, Max: cfg.Rate.Max}

	if cfg.Rate.Store != config.StorePostgres {
		return ratelimit.NewLimiter(ratelimit.NewMemoryStore(policy)), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := ratelimit.NewPostgresStore(pool, policy)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return ratelimit.NewLimiter(store), pool.Close, nil
}
