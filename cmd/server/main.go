package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/brokerage-engine/internal/api"
	"github.com/tradepulse/brokerage-engine/internal/engine"
	"github.com/tradepulse/brokerage-engine/internal/forecast"
	"github.com/tradepulse/brokerage-engine/internal/metrics"
	"github.com/tradepulse/brokerage-engine/internal/model"
	"github.com/tradepulse/brokerage-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Seed display positions (populated outside the engine) ---
	if seedPath := os.Getenv("POSITIONS_SEED"); seedPath != "" {
		if err := seedPositions(st, seedPath); err != nil {
			slog.Error("seeding positions failed", "path", seedPath, "err", err)
			os.Exit(1)
		}
	}

	// --- Forecast proxy ---
	var fc *forecast.Client
	if aiURL := os.Getenv("AI_SERVICE_URL"); aiURL != "" {
		timeout := forecast.DefaultTimeout
		if v := os.Getenv("AI_TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				timeout = d
			}
		}
		fc = forecast.NewClient(aiURL, timeout)
		slog.Info("forecast proxy enabled", "url", aiURL, "timeout", timeout)
	}

	// --- WebSocket hub ---
	wsHub := api.NewWSHub()
	go wsHub.Run()

	// --- Engine + API service ---
	eng := engine.New(st)
	svc := api.NewService(eng, st, fc, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"brokerage-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time execution updates.
		r.Get("/ws", wsHub.HandleWS)

		// Order execution.
		r.Post("/orders", svc.SubmitOrder)

		// Account snapshots.
		r.Get("/accounts/{accountID}/orders", svc.ListOrders)
		r.Get("/accounts/{accountID}/holdings", svc.ListHoldings)
		r.Get("/accounts/{accountID}/positions", svc.ListPositions)

		// AI forecast proxy.
		r.Post("/forecast", svc.GetForecast)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("brokerage-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down brokerage-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("brokerage-engine stopped")
}

// seedPositions loads a JSON array of positions into the store. The
// positions collection is display data maintained outside the execution
// engine, so it is loaded once at startup.
func seedPositions(st store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var positions []model.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	ctx := context.Background()
	for i := range positions {
		if err := st.UpsertPosition(ctx, &positions[i]); err != nil {
			return err
		}
	}
	slog.Info("positions seeded", "count", len(positions))
	return nil
}
