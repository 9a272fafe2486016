package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/reginor/backend-reginor/internal/auth"
	"github.com/reginor/backend-reginor/internal/catalog"
	"github.com/reginor/backend-reginor/internal/checkout"
	"github.com/reginor/backend-reginor/internal/common"
	"github.com/reginor/backend-reginor/internal/config"
	"github.com/reginor/backend-reginor/internal/events"
	"github.com/reginor/backend-reginor/internal/health"
	"github.com/reginor/backend-reginor/internal/membership"
	"github.com/reginor/backend-reginor/internal/notify"
	"github.com/reginor/backend-reginor/internal/obs"
	"github.com/reginor/backend-reginor/internal/order"
	"github.com/reginor/backend-reginor/internal/payment"
	"github.com/reginor/backend-reginor/internal/ratelimit"
	"github.com/reginor/backend-reginor/internal/rules"
	"github.com/reginor/backend-reginor/internal/security"
	"github.com/reginor/backend-reginor/internal/store"
	"github.com/reginor/backend-reginor/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "reginor")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "reginor-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL, "reginor-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	emailNotifier := &notify.Enqueuer{
		Tasks:      taskClient,
		Recipients: notify.PGRecipients{Pool: pool},
		Log:        logger,
	}
	bus := &events.Bus{
		Store:     events.PGStore{Pool: pool},
		Notifiers: []events.Notifier{emailNotifier},
	}

	catalogStore := catalog.Store{Pool: pool}
	catalogService := &catalog.Service{
		Store:  catalogStore,
		Cache:  catalog.NewCache(redisClient, envDuration("CATALOG_CACHE_TTL", 5*time.Minute)),
		Events: bus,
	}
	catalogHandler := &catalog.Handler{Service: catalogService, Validate: validate}

	authService, err := auth.NewService(auth.Config{
		Store:          auth.Store{Pool: pool},
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService, Validate: validate}
	authMiddleware := auth.Middleware{Service: authService}

	rulesStore := rules.Store{Pool: pool}
	rulesHandler := &rules.Handler{Store: rulesStore, Validate: validate}

	membershipStore := membership.Store{Pool: pool}
	membershipHandler := &membership.Handler{Store: membershipStore, Events: bus, Validate: validate}

	orderStore := order.Store{Pool: pool}
	orderHandler := &order.Handler{Store: orderStore}

	checkoutService := &checkout.Service{
		Tracks:   catalogStore,
		Rules:    rulesStore,
		Members:  membershipStore,
		Orders:   orderStore,
		Rates:    checkout.PGRates{Pool: pool, Default: cfg.DefaultMvaRate},
		Events:   bus,
		Currency: cfg.Currency,
		Log:      logger,
	}
	checkoutHandler := &checkout.Handler{Service: checkoutService, Validate: validate}

	stripeProvider := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	paymentService := &payment.Service{
		Orders:   orderStore,
		Provider: stripeProvider,
		Events:   bus,
		Log:      logger,
	}
	paymentHandler := &payment.Handler{Service: paymentService, Stripe: stripeProvider}

	idem := common.Idem{R: redisClient, TTL: cfg.CheckoutIdemTTL}
	orgResolver := tenant.NewResolver(cfg.OrgHeader, cfg.RootDomain, cfg.DefaultOrg)
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PerOrgClient("checkout"),
			Window: envDuration("CHECKOUT_RATE_WINDOW", time.Minute),
			Max:    envInt("CHECKOUT_RATE_MAX", 10),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("checkout rate limiter") },
	}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PerOrgClient("login"),
			Window: envDuration("LOGIN_RATE_WINDOW", time.Minute),
			Max:    envInt("LOGIN_RATE_MAX", 20),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("login rate limiter") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "limiter"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	globalLimiter := limitermw.NewMiddleware(limiter.New(limiterStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("GLOBAL_RATE_MAX", 600)),
	}))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(orgResolver.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(globalLimiter.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.OrgHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Pool: pool, Redis: redisClient}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/courses", catalogHandler.List)
		v.Get("/courses/{slug}", catalogHandler.Detail)
		v.Get("/membership-tiers", membershipHandler.ListTiers)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.With(authMiddleware.Authenticate).Post("/checkout/quote", checkoutHandler.Quote)
		v.With(authMiddleware.RequireAuth, checkoutLimit.Middleware, idem.Middleware).
			Post("/checkout", checkoutHandler.Submit)

		v.Group(func(g chi.Router) {
			g.Use(authMiddleware.RequireAuth)
			g.Get("/me/orders", orderHandler.ListMine)
			g.Get("/me/membership", membershipHandler.Mine)
			g.Get("/orders/{id}", orderHandler.Get)
			g.With(idem.Middleware).Post("/orders/{id}/pay", paymentHandler.Start)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auth.RequireRole(common.RoleStaff, common.RoleAdmin))
			admin.Post("/courses", catalogHandler.CreateCourse)
			admin.Post("/courses/{id}/publish", catalogHandler.Publish)
			admin.Post("/courses/{id}/unpublish", catalogHandler.Unpublish)
			admin.Post("/tracks", catalogHandler.CreateTrack)
			admin.Get("/rules", rulesHandler.List)
			admin.Post("/rules", rulesHandler.Create)
			admin.Put("/rules/{id}", rulesHandler.Update)
			admin.Post("/rules/{id}/enable", rulesHandler.Enable)
			admin.Post("/rules/{id}/disable", rulesHandler.Disable)
			admin.Delete("/rules/{id}", rulesHandler.Delete)
			admin.Post("/membership-tiers", membershipHandler.CreateTier)
			admin.Post("/memberships", membershipHandler.Grant)
		})

		v.Post("/webhooks/stripe", paymentHandler.StripeWebhook)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop, stopCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopCancel()
	<-stop.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(envOrDefault(key, "")) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if parsed, err := strconv.Atoi(envOrDefault(key, "")); err == nil {
		return parsed
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(envOrDefault(key, ""), 64); err == nil {
		return parsed
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(envOrDefault(key, "")); err == nil {
		return parsed
	}
	return fallback
}
