package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autodealers-backend/internal/ai"
	"autodealers-backend/internal/auth"
	"autodealers-backend/internal/billing"
	"autodealers-backend/internal/cache"
	"autodealers-backend/internal/config"
	"autodealers-backend/internal/db"
	"autodealers-backend/internal/handlers"
	"autodealers-backend/internal/leads"
	"autodealers-backend/internal/membership"
	"autodealers-backend/internal/middleware"
	"autodealers-backend/internal/notifications"
	"autodealers-backend/internal/promotions"
	"autodealers-backend/internal/scoring"
	"autodealers-backend/internal/validation"
	"autodealers-backend/internal/vehicles"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
			RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
			Issuer:     "autodealers-backend",
		}
	}

	brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if brevo == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}
	leadMailer := notifications.NewLeadMailer(brevo, cols.Users, logger)

	classifier := ai.NewClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	if classifier == nil {
		logger.Info("ai classifier disabled")
	} else {
		logger.Info("ai classifier enabled", slog.String("model", cfg.OpenAIModel))
	}

	val := validation.New()

	membershipRepo := membership.NewRepository(cols.Plans, cols.Memberships)
	usageRepo := membership.NewUsageRepository(cols.Users, cols.Vehicles, cols.Promotions)
	checker := membership.NewChecker(membershipRepo, usageRepo, cacheStore,
		time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.LandingPromotionCap)
	membershipHandler := membership.NewHandler(checker, membershipRepo, logger)

	billingService := billing.NewService(membershipRepo, checker, billing.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PriceStarter:  cfg.StripePriceStarter,
		PricePro:      cfg.StripePricePro,
		PriceDealer:   cfg.StripePriceDealer,
		SuccessURL:    cfg.BillingSuccessURL,
		CancelURL:     cfg.BillingCancelURL,
	}, logger)
	billingHandler := billing.NewHandler(billingService, val, logger)

	slotCounter := promotions.NewMongoSlotCounter(cols.Counters, cfg.LandingPromotionCap)
	if err := slotCounter.EnsureCounter(ctx); err != nil {
		logger.Error("slot counter init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	promotionsRepo := promotions.NewRepository(cols.Promotions)
	promotionsService := promotions.NewService(promotionsRepo, slotCounter, checker, cfg.Timezone)
	promotionsHandler := promotions.NewHandler(promotionsService, val, logger)

	vehiclesRepo := vehicles.NewRepository(cols.Vehicles)
	vehiclesService := vehicles.NewService(vehiclesRepo, checker, cfg.Timezone)
	vehiclesHandler := vehicles.NewHandler(vehiclesService, val, logger)

	leadsRepo := leads.NewRepository(cols.Leads)
	leadsService := leads.NewService(leadsRepo, cfg.Timezone)

	settingsRepo := scoring.NewSettingsRepository(cols.ScoringSettings)
	scoringService := scoring.NewService(leadsRepo, settingsRepo, cfg.Timezone)
	scoringHandler := scoring.NewHandler(scoringService, val, logger)

	leadsHandler := leads.NewHandler(leadsService, scoringService, classifier, leadMailer, checker, val, logger)

	server := &handlers.Server{
		Cfg:          cfg,
		Cols:         cols,
		Val:          val,
		Log:          logger,
		Auth:         jwtManager,
		Entitlements: checker,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	leadsLimiter := middleware.NewRateLimiter(cfg.RateLimitLeads, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Route("/api/v1", func(api chi.Router) {
		// Public surface: plan catalog, landing page, per-dealership
		// vehicle pages and lead capture.
		api.Get("/plans", membershipHandler.ListPlans)
		api.Get("/landing/promotions", promotionsHandler.PublicLanding)
		api.Get("/public/tenants/{tenantId}/vehicles/{slug}", vehiclesHandler.PublicBySlug)
		api.With(leadsLimiter.Middleware).Post("/public/tenants/{tenantId}/leads", leadsHandler.PublicCreate)

		// Stripe authenticates with its signature header.
		api.Post("/billing/webhook", billingHandler.Webhook)

		api.Route("/auth", func(a chi.Router) {
			a.Post("/login", server.Login)
			a.Post("/refresh", server.Refresh)
			a.Post("/logout", server.Logout)
			a.Post("/bootstrap", server.BootstrapAdmin)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.TenantAuth(cfg.AdminAPIKey, jwtManager))

			protected.Get("/membership", membershipHandler.GetMembership)
			protected.Get("/membership/can/{action}", membershipHandler.CheckAction)

			protected.Post("/billing/checkout", billingHandler.Checkout)
			protected.Post("/billing/portal", billingHandler.Portal)

			protected.Post("/leads", leadsHandler.Create)
			protected.Get("/leads", leadsHandler.List)
			protected.Get("/leads/{id}", leadsHandler.GetByID)
			protected.Patch("/leads/{id}/status", leadsHandler.UpdateStatus)
			protected.Post("/leads/{id}/interactions", leadsHandler.AddInteraction)

			protected.Get("/scoring/config", scoringHandler.GetConfig)
			protected.Put("/scoring/config", scoringHandler.UpdateConfig)
			protected.Post("/leads/{id}/score/recalculate", scoringHandler.Recalculate)
			protected.Put("/leads/{id}/score/manual", scoringHandler.SetManualScore)

			protected.Post("/vehicles", vehiclesHandler.Create)
			protected.Get("/vehicles", vehiclesHandler.List)
			protected.Get("/vehicles/{id}", vehiclesHandler.GetByID)
			protected.Patch("/vehicles/{id}/status", vehiclesHandler.UpdateStatus)
			protected.Delete("/vehicles/{id}", vehiclesHandler.Delete)

			protected.Post("/promotions", promotionsHandler.Create)
			protected.Get("/promotions", promotionsHandler.List)
			protected.Patch("/promotions/{id}/status", promotionsHandler.UpdateStatus)

			protected.Post("/sellers", server.CreateSeller)
			protected.Get("/sellers", server.ListSellers)
			protected.Patch("/sellers/{id}/deactivate", server.DeactivateSeller)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(middleware.PlatformAdmin(cfg.AdminAPIKey, jwtManager))
			admin.Post("/admin/dealers", server.RegisterDealer)
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}
