package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/indiansinghana/iig-backend/internal/config"
	"github.com/indiansinghana/iig-backend/internal/modules/auth"
	"github.com/indiansinghana/iig-backend/internal/modules/deal"
	"github.com/indiansinghana/iig-backend/internal/modules/limiter"
	"github.com/indiansinghana/iig-backend/internal/modules/member"
	"github.com/indiansinghana/iig-backend/internal/modules/plan"
	"github.com/indiansinghana/iig-backend/internal/modules/redemption"
	"github.com/indiansinghana/iig-backend/internal/platform/database"
	"github.com/indiansinghana/iig-backend/internal/platform/events"
	"github.com/indiansinghana/iig-backend/internal/platform/logger"
	"github.com/indiansinghana/iig-backend/internal/platform/tracing"
)

// configPath returns CONFIG_PATH, defaulting to config.yaml in the working
// directory.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logger.New(cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)
	ctx := log.WithContext(context.Background())

	shutdownTracing, err := tracing.Init(ctx, cfg.App.Name, cfg.Tracing.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("connected to the database")

	loc, _ := cfg.Location()

	// ── Plans ───────────────────────────────────────────────
	var catalog plan.Catalog = plan.NewSQLRepository(db)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, plan cache will fall through")
		}
		catalog = plan.NewCachedCatalog(catalog, plan.NewRedisCache(rdb), cfg.Redis.PlanTTL)
	}

	// ── Events ──────────────────────────────────────────────
	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		publisher = kp
	}

	// ── Modules ─────────────────────────────────────────────
	lim := limiter.New(catalog, loc)

	memberRepo := member.NewSQLRepository(db)
	memberService := member.NewService(memberRepo, catalog)
	authService := auth.NewService(memberRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	dealService := deal.NewService(deal.NewSQLRepository(db), memberRepo, catalog, lim, loc)

	redemptionService := redemption.NewService(
		redemption.NewSQLStore(db), catalog, lim, publisher,
		redemption.WithThrottle(rate.NewLimiter(rate.Limit(cfg.Limits.SubmitPerSecond), cfg.Limits.SubmitBurst)),
		redemption.WithBulkConcurrency(cfg.Limits.BulkConcurrency),
	)

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware(log))
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	plan.NewHandler(plan.NewService(catalog)).RegisterRoutes(router)
	memberHandler := member.NewHandler(memberService)
	memberHandler.RegisterRoutes(router)
	auth.NewHandler(authService).RegisterRoutes(router, cfg.Auth.JWTSecret)

	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		deal.NewHandler(dealService).RegisterRoutes(r)
		redemption.NewHandler(redemptionService).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(member.RoleAdmin))
			memberHandler.RegisterAdminRoutes(r)
		})
	})

	// ── Start Server ─────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("tracer shutdown")
		}
		close(idleConnsClosed)
	}()

	log.Info().Str("port", cfg.App.Port).Msg("IIG API server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("listen")
	}

	<-idleConnsClosed
	log.Info().Msg("server stopped")
}
