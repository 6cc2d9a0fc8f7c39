package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvieth/verslun-api/internal/auth"
	"github.com/solvieth/verslun-api/internal/cart"
	"github.com/solvieth/verslun-api/internal/catalog"
	"github.com/solvieth/verslun-api/internal/checkout"
	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/config"
	"github.com/solvieth/verslun-api/internal/credit"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/feedback"
	"github.com/solvieth/verslun-api/internal/health"
	"github.com/solvieth/verslun-api/internal/notify"
	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/order"
	"github.com/solvieth/verslun-api/internal/payment"
	"github.com/solvieth/verslun-api/internal/pricing"
	"github.com/solvieth/verslun-api/internal/promo"
	"github.com/solvieth/verslun-api/internal/ratelimit"
	"github.com/solvieth/verslun-api/internal/resilience"
	"github.com/solvieth/verslun-api/internal/security"
	"github.com/solvieth/verslun-api/internal/shipping"
	"github.com/solvieth/verslun-api/internal/store"
	"github.com/solvieth/verslun-api/internal/ticket"
	"github.com/solvieth/verslun-api/internal/tour"
	"github.com/solvieth/verslun-api/internal/venue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "verslun")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "verslun-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "verslun-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	st := store.New(pool)

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
	queue := asynq.NewClient(asynqOpt)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error().Err(err).Msg("close task queue")
		}
	}()

	validate := validator.New()

	emailNotifier := notify.EmailNotifier{
		Queue:   queue,
		Enabled: cfg.NotifyEmailEnabled,
		From:    cfg.NotifyEmailFrom,
		Logger:  logger,
	}
	bus := &events.Bus{
		Store:     st,
		Notifiers: []events.Notifier{emailNotifier},
	}

	var tokenParser auth.TokenParser
	if cfg.JWKSURL != "" {
		v, err := auth.NewValidator(context.Background(), cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise token validator")
		}
		tokenParser = v
	} else {
		logger.Warn().Msg("AUTH_JWKS_URL not set, bearer tokens will be rejected")
	}
	authMW := auth.Middleware{Parser: tokenParser, AdminEmails: cfg.AdminEmails}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var rateLimitMW func(http.Handler) http.Handler
	if cfg.RateLimitRPM > 0 {
		lim, err := ratelimit.New(redisClient, cfg.RateLimitRPM)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limiter")
		}
		rateLimitMW = ratelimit.Handler{
			Limiter: lim,
			Key:     ratelimit.DefaultKey,
			OnError: func(err error) { logger.Error().Err(err).Msg("rate limiter") },
		}.Middleware
	}

	ship := shipping.NewResolver(shipping.Rates{
		LocationCapital: pricing.Money(cfg.ShippingLocationCapital),
		LocationOther:   pricing.Money(cfg.ShippingLocationOther),
		HomeCapital:     pricing.Money(cfg.ShippingHomeCapital),
		HomeOther:       pricing.Money(cfg.ShippingHomeOther),
	}, cfg.ShippingCapitalCodes)

	promoSvc := &promo.Service{Q: st, DefaultPerUserLimit: cfg.PromoPerUserLimit}
	promoHandler := &promo.Handler{Q: st, Svc: promoSvc, Validate: validate}

	saltPay := payment.SaltPay{
		APIKey:    cfg.SaltPayAPIKey,
		SecretKey: cfg.SaltPaySecretKey,
		BaseURL:   cfg.SaltPayBaseURL,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second),
			MaxAttempts: 3,
			Timeout:     10 * time.Second,
		},
	}
	paymentSvc := &payment.Service{
		Q:               st,
		Provider:        saltPay,
		IntentTTL:       cfg.PaymentIntentTTL,
		CallbackBaseURL: cfg.CallbackBaseURL,
		Currency:        cfg.CurrencyCode,
	}
	paymentHandler := &payment.Handler{Svc: paymentSvc}
	webhookHandler := payment.Webhook{
		Store:     st,
		Pool:      pool,
		Providers: map[string]payment.Provider{"saltpay": saltPay},
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Events:    bus,
	}

	cartSvc := &cart.Service{Q: st, Promo: promoSvc, Ship: ship, TTL: cfg.CartTTL}
	cartHandler := &cart.Handler{Svc: cartSvc, Ship: ship, Currency: cfg.CurrencyCode}

	checkoutSvc := &checkout.Service{
		Store:    st,
		Pool:     pool,
		Promo:    promoSvc,
		Ship:     ship,
		Payments: paymentSvc,
		Events:   bus,
		Currency: cfg.CurrencyCode,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate}

	catalogHandler := &catalog.Handler{Q: st}
	orderHandler := &order.Handler{Q: st}
	orderAdmin := &order.AdminHandler{Q: st, Events: bus}

	ticketSvc := &ticket.Service{
		Store:    st,
		Pool:     pool,
		Promo:    promoSvc,
		Payments: paymentSvc,
		Events:   bus,
	}
	ticketHandler := &ticket.Handler{Store: st, Svc: ticketSvc, Validate: validate}

	tourSvc := &tour.Service{Store: st, Pool: pool, Events: bus}
	tourHandler := &tour.Handler{Q: st, Svc: tourSvc, Validate: validate}

	venueHandler := &venue.Handler{Q: st, Events: bus, Validate: validate}

	creditSvc := &credit.Service{Q: st, Redis: redisClient, Events: bus}
	creditHandler := &credit.Handler{Svc: creditSvc, Queue: queue, Validate: validate}

	feedbackSvc := &feedback.Service{Q: st}
	feedbackHandler := &feedback.Handler{Svc: feedbackSvc, Validate: validate}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: envBool("SECURE_HSTS", false)}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", auth.AnonHeader},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probe{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMW.Authenticate)
		if rateLimitMW != nil {
			v.Use(rateLimitMW)
		}

		v.Get("/products", catalogHandler.List)
		v.Get("/products/{slug}", catalogHandler.Get)

		v.Get("/events", ticketHandler.ListEvents)
		v.Get("/events/{slug}", ticketHandler.GetEvent)
		v.Get("/events/{slug}/reviews", feedbackHandler.List)
		v.With(authMW.RequireAuth).Post("/reviews", feedbackHandler.Submit)
		v.With(idem.Middleware).Post("/tickets/purchase", ticketHandler.Purchase)

		v.Get("/tours", tourHandler.List)
		v.Get("/tours/{id}/sessions", tourHandler.Sessions)
		v.Post("/tours/sessions/{id}/book", tourHandler.Book)

		v.Post("/venue-bookings", venueHandler.Intake)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{itemId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{itemId}", cartHandler.RemoveItem)
				g.Post("/{id}/apply-promo", cartHandler.ApplyPromo)
				g.Delete("/{id}/promo", cartHandler.RemovePromo)
				g.Post("/{id}/quote/shipping", cartHandler.QuoteShipping)
			})
		})

		v.With(idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(authR chi.Router) {
			authR.Use(authMW.RequireAuth)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{id}", orderHandler.Get)
		})

		v.Route("/payments", func(p chi.Router) {
			p.With(idem.Middleware).Post("/orders/{id}/intent", paymentHandler.CreateIntent)
			p.Get("/orders/{id}/status", paymentHandler.Status)
		})

		v.Post("/webhooks/payments/{provider}", webhookHandler.Handle)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireAdmin)

			admin.Get("/promo-codes", promoHandler.List)
			admin.Post("/promo-codes", promoHandler.Create)
			admin.Get("/promo-codes/{code}", promoHandler.Get)
			admin.Put("/promo-codes/{code}", promoHandler.Update)
			admin.Delete("/promo-codes/{code}", promoHandler.Delete)
			admin.Post("/promo-codes/preview", promoHandler.Preview)

			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)

			admin.Get("/venue-bookings", venueHandler.List)
			admin.Get("/venue-bookings/{id}", venueHandler.Get)
			admin.Patch("/venue-bookings/{id}", venueHandler.Update)

			admin.Post("/credits/entries", creditHandler.AddEntry)
			admin.Get("/credits/ledger", creditHandler.Ledger)
			admin.Get("/credits/subscriptions", creditHandler.ListSubscriptions)
			admin.Post("/credits/subscriptions", creditHandler.CreateSubscription)
			admin.Patch("/credits/subscriptions/{id}", creditHandler.UpdateSubscription)
			admin.Delete("/credits/subscriptions/{id}", creditHandler.DeleteSubscription)
			admin.Post("/credits/run", creditHandler.TriggerBatch)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
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

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
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
