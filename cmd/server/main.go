package main

import (
	"context"
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
	"github.com/shopspring/decimal"

	"github.com/chikereg22-dot/PiPredict/internal/events"
	"github.com/chikereg22-dot/PiPredict/internal/limits"
	"github.com/chikereg22-dot/PiPredict/internal/live"
	"github.com/chikereg22-dot/PiPredict/internal/metrics"
	"github.com/chikereg22-dot/PiPredict/internal/settle"
	"github.com/chikereg22-dot/PiPredict/internal/stake"
	"github.com/chikereg22-dot/PiPredict/internal/store"
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

	// --- Kafka event publisher ---
	var publisher *events.Publisher
	if broker := os.Getenv("KAFKA_BROKER"); broker != "" {
		publisher = events.NewPublisher(broker)
		cleanup = append(cleanup, func() { publisher.Close() })
		slog.Info("Kafka publishing enabled", "broker", broker)
	}

	// --- Stake limits ---
	maxPerEntry := decimalEnv("MAX_STAKE_PER_ENTRY", decimal.NewFromInt(100))
	maxOpenPerSport := decimalEnv("MAX_OPEN_STAKE_PER_SPORT", decimal.NewFromInt(500))
	limiter := limits.NewStakeLimiter(maxPerEntry, maxOpenPerSport)

	// --- WebSocket hub ---
	hub := live.NewHub()
	go hub.Run()

	// --- Services ---
	// Premium gate is on by default; REQUIRE_PREMIUM=false opens
	// admission to everyone.
	var eligibility stake.EligibilityFunc
	if os.Getenv("REQUIRE_PREMIUM") != "false" {
		eligibility = stake.PremiumEligibility(st)
	} else {
		slog.Warn("REQUIRE_PREMIUM=false, admitting non-premium users")
	}

	stakeSvc := stake.NewService(st, eligibility, limiter, hub, publisher)
	stakeSvc.SetSubscriptionPrice(decimalEnv("SUBSCRIPTION_PRICE", decimal.NewFromInt(10)))

	rate := decimalEnv("COMMISSION_RATE", decimal.NewFromFloat(0.10))
	feed := settle.NewManualFeed()
	engine := settle.NewEngine(st, feed, rate, hub, publisher)

	// Background sweep settles due pools whose outcome is known.
	sweepInterval := durationEnv("SETTLE_INTERVAL", time.Minute)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := engine.SweepDue(sweepCtx); n > 0 {
					slog.Info("sweep settled pools", "count", n)
				}
			}
		}
	}()
	defer stopSweep()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
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
		w.Write([]byte(`{"status":"ok","service":"pipredict-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time pool updates.
		r.Get("/ws", hub.HandleWS)

		// Pool lifecycle.
		r.Get("/pools", stakeSvc.ListPools)
		r.Post("/pools", stakeSvc.CreatePool)
		r.Get("/pools/{poolID}", stakeSvc.GetPool)
		r.Post("/pools/{poolID}/join", stakeSvc.Join)
		r.Post("/pools/{poolID}/resolve", engine.HandleResolve)
		r.Post("/pools/{poolID}/settle", engine.HandleSettle)

		// Accounts.
		r.Get("/users/{userID}", stakeSvc.GetAccount)
		r.Get("/users/{userID}/ledger", stakeSvc.GetJournal)
		r.Post("/users/{userID}/deposit", stakeSvc.Deposit)
		r.Post("/users/{userID}/subscribe", stakeSvc.Subscribe)
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
		slog.Info("pipredict-engine listening", "port", port)
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

	slog.Info("shutting down pipredict-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("pipredict-engine stopped")
}

func decimalEnv(name string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Error("invalid value for "+name, "value", raw, "err", err)
		os.Exit(1)
	}
	return v
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Error("invalid value for "+name, "value", raw, "err", err)
		os.Exit(1)
	}
	return v
}
