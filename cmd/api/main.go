package main

import (
	"context"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"shopify-collector-app/internal/application"
	"shopify-collector-app/internal/config"
	"shopify-collector-app/internal/infrastructure/metrics"
	"shopify-collector-app/internal/infrastructure/repository"
	"shopify-collector-app/internal/infrastructure/sessionstore"
	shopifyinfra "shopify-collector-app/internal/infrastructure/shopify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	securitymiddleware "shopify-collector-app/internal/infrastructure/middleware"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to MongoDB
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())

	shopRepo := repository.NewMongoShopRepository(mongoClient, cfg.MongoDatabase)

	// The connection is verified in the background so boot is not serialized
	// on the database; /ready stays negative until this completes. A dead
	// database at startup is fatal.
	var dbReady atomic.Bool
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := shopRepo.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to reach MongoDB")
		}
		if err := shopRepo.EnsureIndexes(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to ensure indexes")
		}
		dbReady.Store(true)
		logger.Info().Msg("Database connection established")
	}()

	// Connect to Redis for OAuth state
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	sessions := sessionstore.NewRedisSessionStore(redisClient)

	// Initialize infrastructure
	platform := shopifyinfra.NewClient(cfg.APIKey, cfg.APISecret, cfg.Scopes, cfg.AppURL, cfg.PlatformTimeout, logger)
	verifier := shopifyinfra.NewWebhookVerifier(cfg.APISecret)
	lifecycleMetrics := metrics.NewLifecycleMetrics()

	// Initialize application services
	registry := application.NewActiveShopRegistry(shopRepo)
	authService := application.NewAuthService(shopRepo, registry, logger)
	subscriptionService := application.NewSubscriptionService(shopRepo, platform, lifecycleMetrics, logger, cfg.TrackerBaseURL)
	uninstallResolver := application.NewUninstallResolver(shopRepo, platform, registry, lifecycleMetrics, logger)

	srv := &server{
		cfg:           cfg,
		logger:        logger,
		verifier:      verifier,
		sessions:      sessions,
		platform:      platform,
		registry:      registry,
		auth:          authService,
		subscriptions: subscriptionService,
		resolver:      uninstallResolver,
		store:         shopRepo,
		dbReady:       &dbReady,
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.ContentSecurityMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Operational routes
	r.Get("/health", srv.healthHandler)
	r.Get("/ready", srv.readyHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "./docs/swagger.json")
	})

	// App entry and OAuth
	r.Get("/", srv.rootHandler)
	r.Get("/auth", srv.oauthInitHandler)
	r.Get("/auth/callback", srv.oauthCallbackHandler)

	// Platform webhooks and subscription management
	r.Post("/webhooks", srv.uninstallWebhookHandler)
	r.Get("/register/webhooks", srv.registerHandler)
	r.Get("/update/webhooks", srv.updateHandler)
	r.Get("/fetch/collector-webhook", srv.fetchCollectorHandler)

	// GDPR routes
	r.Post("/shop/redact", srv.shopRedactHandler)
	r.Post("/customers/data_request", srv.customerDataRequestHandler)
	r.Post("/customers/redact", srv.customerRedactHandler)

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}
