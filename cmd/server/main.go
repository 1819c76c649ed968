package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stxbets/market-engine/internal/config"
	"github.com/stxbets/market-engine/internal/engine"
	"github.com/stxbets/market-engine/internal/metrics"
	"github.com/stxbets/market-engine/internal/quotesvc"
	"github.com/stxbets/market-engine/internal/snapshot"
)

func main() {
	configPath := flag.String("config", os.Getenv("STXBETS_CONFIG"), "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// --- Initialize snapshot store ---
	var st snapshot.Store
	var cleanup []func()

	if cfg.Database.DSN != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			slog.Error("invalid database dsn", "err", err)
			os.Exit(1)
		}
		poolCfg.MaxConns = int32(cfg.Database.PoolMaxConns)
		poolCfg.MinConns = int32(cfg.Database.PoolMinConns)

		pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = snapshot.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.Enabled {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			cleanup = append(cleanup, func() { rdb.Close() })
			st = snapshot.NewCachedStore(st, rdb, cfg.Redis.CacheTTL.Duration)
			slog.Info("Redis cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL.Duration)
		}
	} else {
		slog.Warn("database dsn not set, using in-memory store (data will not persist)")
		st = snapshot.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Pricing engine ---
	eng, err := engine.New(cfg.Engine.Fees, cfg.Engine.MinBetMicro)
	if err != nil {
		slog.Error("invalid engine configuration", "err", err)
		os.Exit(1)
	}
	slog.Info("engine configured",
		"platform_bps", cfg.Engine.Fees.PlatformBps,
		"creator_bps", cfg.Engine.Fees.CreatorBps,
		"lp_bps", cfg.Engine.Fees.LPBps,
		"min_bet_micro", cfg.Engine.MinBetMicro,
	)

	// --- WebSocket hub ---
	wsHub := quotesvc.NewWSHub()
	go wsHub.Run()

	// --- Quote service ---
	svc := quotesvc.NewService(st, eng, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(cfg.Server.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"quote-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time odds updates.
		r.Get("/ws", wsHub.HandleWS)

		// Market views.
		r.Get("/markets", svc.ListMarkets)
		r.Get("/markets/{marketID}", svc.GetMarket)
		r.Get("/markets/{marketID}/odds", svc.GetOdds)
		r.Get("/markets/{marketID}/lp/{user}", svc.GetLpRewards)

		// Quotes.
		r.Post("/quotes/bet", svc.QuoteBet)
		r.Post("/quotes/cashout", svc.QuoteCashOut)
		r.Post("/quotes/claim", svc.QuoteClaim)

		// Portfolio queries.
		r.Get("/portfolio/{user}", svc.GetPortfolio)

		// Snapshot ingest from the chain indexer.
		r.Post("/snapshots", svc.IngestSnapshots)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("quote-engine listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	slog.Info("shutting down quote-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("quote-engine stopped")
}

// corsMiddleware allows the configured frontend origins.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
