package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-dapur/internal/analysis"
	"github.com/noah-isme/backend-dapur/internal/app"
	"github.com/noah-isme/backend-dapur/internal/auth"
	"github.com/noah-isme/backend-dapur/internal/cache"
	"github.com/noah-isme/backend-dapur/internal/cart"
	"github.com/noah-isme/backend-dapur/internal/catalog"
	"github.com/noah-isme/backend-dapur/internal/common"
	"github.com/noah-isme/backend-dapur/internal/config"
	"github.com/noah-isme/backend-dapur/internal/favorites"
	"github.com/noah-isme/backend-dapur/internal/health"
	"github.com/noah-isme/backend-dapur/internal/obs"
	"github.com/noah-isme/backend-dapur/internal/promotion"
	"github.com/noah-isme/backend-dapur/internal/ratelimit"
	"github.com/noah-isme/backend-dapur/internal/resilience"
	"github.com/noah-isme/backend-dapur/internal/security"
	"github.com/noah-isme/backend-dapur/internal/tags"
	"github.com/noah-isme/backend-dapur/internal/tasks"
)

const analysisPrefix = "/api/v1/analysis/"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "dapur")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.RegisterMetrics(prometheus.DefaultRegisterer)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "dapur-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
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

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.Open(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	router, err := newRouter(cfg, deps, logger, tracingEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newRouter(cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger, tracingEnabled bool) (http.Handler, error) {
	catalogStore := catalog.NewStore(deps.DB)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      catalogStore,
		Cache:        cache.New(deps.Redis, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		return nil, err
	}

	promotionService, err := promotion.NewService(promotion.ServiceConfig{
		Repository:     promotion.NewStore(deps.DB),
		Catalog:        catalogService,
		Validator:      deps.Validator,
		Logger:         logger.With().Str("component", "promotion").Logger(),
		LogEvaluations: cfg.PromotionLogEachEvaluated,
	})
	if err != nil {
		return nil, err
	}

	favoriteStore := favorites.NewStore(deps.DB)
	taskClient := tasks.NewClient(deps.Tasks)
	tagService, err := tags.NewService(tags.ServiceConfig{
		Index:        tags.NewStore(deps.DB),
		Favorites:    favoriteStore,
		Warmups:      taskClient,
		Cache:        cache.New(deps.Redis, cfg.TagCacheTTL),
		Logger:       logger.With().Str("component", "tags").Logger(),
		DefaultLimit: cfg.TagDefaultLimit,
	})
	if err != nil {
		return nil, err
	}

	classifier, err := analysis.NewHTTPClassifier(analysis.ClassifierConfig{
		URL:         cfg.ClassifierURL,
		Timeout:     cfg.ClassifierTimeout,
		MaxAttempts: cfg.ClassifierMaxAttempts,
		Breaker: resilience.New(resilience.Settings{
			Target:       "classifier",
			MinRequests:  cfg.BreakerFailures,
			FailureRatio: cfg.BreakerFailureRatio,
			OpenFor:      cfg.BreakerCooldown,
		}).WithLogger(logger),
		Meter: deps.Meter,
	})
	if err != nil {
		return nil, err
	}
	analysisService, err := analysis.NewService(analysis.ServiceConfig{
		Classifier:      classifier,
		Finder:          tagService,
		History:         analysis.NewStore(deps.DB),
		Notifier:        taskClient,
		StatsCache:      cache.New(deps.Redis, cfg.AnalysisStatsTTL),
		Logger:          logger.With().Str("component", "analysis").Logger(),
		BasicLimit:      cfg.AnalysisBasicLimit,
		AdditionalLimit: cfg.AnalysisAdditionalLimit,
		DedupWindow:     cfg.AnalysisDedupWindow,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokens(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		return nil, err
	}
	authMiddleware := auth.Middleware{Tokens: tokens}
	requireAdmin := auth.RequireRole(auth.NewRoleStore(deps.DB), auth.RoleAdmin)

	globalLimit, err := ratelimit.NewGlobal(deps.LimiterStore, cfg.RateLimitAPI, logger)
	if err != nil {
		return nil, err
	}
	analysisLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.UserOrIP("analysis"),
			Window: time.Minute,
			Max:    cfg.RateLimitAnalysisPerMin,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("analysis rate limit unavailable") },
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})
	promotionHandler := promotion.NewHandler(promotionService)
	tagHandler := tags.NewHandler(tagService)
	favoriteHandler := &favorites.Handler{Svc: favorites.NewService(favoriteStore)}
	cartHandler := &cart.Handler{
		Svc:       cart.NewService(cart.NewStore(deps.DB), catalogService, promotionService),
		Validator: deps.Validator,
	}
	analysisHandler := analysis.NewHandler(analysisService, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "dapur"), buckets, nil)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction()}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{DB: deps.DB, Redis: deps.Redis},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(globalLimit.Middleware)
		v.Use(security.BodyLimit{Max: 1 << 20, Skip: func(r *http.Request) bool {
			return strings.HasPrefix(r.URL.Path, analysisPrefix)
		}}.Middleware)
		v.Use(authMiddleware.Authenticate)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Route("/products/{productID}", func(p chi.Router) {
			p.Get("/", catalogHandler.ProductDetail)
			p.Get("/similar", tagHandler.Similar)
			p.Get("/tags", tagHandler.ProductTags)
		})

		v.Route("/tags", func(t chi.Router) {
			t.Get("/products", tagHandler.ProductsByTags)
			t.Get("/{tagName}/products", tagHandler.ProductsByTag)
			t.Post("/alternatives", tagHandler.Alternatives)
		})

		v.Route("/promotions", func(p chi.Router) {
			p.Get("/", promotionHandler.List)
			p.Get("/active/for-cart", promotionHandler.ActiveForCart)
			p.Get("/{promotionID}", promotionHandler.Get)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Post("/discounts", promotionHandler.Calculate)
			c.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireAuth)
				g.Get("/", cartHandler.Get)
				g.Get("/priced", cartHandler.Priced)
				g.Delete("/", cartHandler.Clear)
				g.With(idem.Middleware).Post("/items", cartHandler.AddItem)
				g.Put("/items/{productID}", cartHandler.UpdateItem)
				g.Delete("/items/{productID}", cartHandler.RemoveItem)
			})
		})

		v.Route("/favorites", func(f chi.Router) {
			f.Get("/{productID}", favoriteHandler.Check)
			f.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireAuth)
				g.Get("/", favoriteHandler.List)
				g.Post("/toggle", favoriteHandler.Toggle)
			})
		})

		v.Route("/analysis", func(a chi.Router) {
			a.Use(authMiddleware.RequireAuth)
			a.With(analysisLimit.Middleware, idem.Middleware).Post("/base64", analysisHandler.Analyze)
			a.Get("/my-history", analysisHandler.History)
			a.Get("/history/stats", analysisHandler.Stats)
			a.Get("/history/popular", analysisHandler.Popular)
			a.Delete("/history/{analysisID}", analysisHandler.Delete)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(requireAdmin)
			admin.With(idem.Middleware).Post("/promotions", promotionHandler.Create)
			admin.Put("/promotions/{promotionID}", promotionHandler.Update)
			admin.Delete("/promotions/{promotionID}", promotionHandler.Delete)
			admin.Post("/products/{productID}/tags", tagHandler.AddTag)
		})
	})

	return r, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
