package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/cache"
	"github.com/kxw147-gmail/token-pricing-system/internal/client"
	"github.com/kxw147-gmail/token-pricing-system/internal/config"
	"github.com/kxw147-gmail/token-pricing-system/internal/events"
	"github.com/kxw147-gmail/token-pricing-system/internal/handler"
	"github.com/kxw147-gmail/token-pricing-system/internal/middleware"
	"github.com/kxw147-gmail/token-pricing-system/internal/repository"
	"github.com/kxw147-gmail/token-pricing-system/internal/service"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logger
	logger, err := createLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Connect to database; the service must not serve traffic without it
	db, err := connectToDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Set up the latest-price cache tier
	priceCache, err := buildCache(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer priceCache.Close()

	// Initialize Kafka publisher (if enabled)
	var publisher *events.Publisher
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		logger.Info("Initialized Kafka publisher", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// Initialize repositories
	priceRepo := repository.NewPriceRepository(db, logger)
	userRepo := repository.NewUserRepository(db, logger)

	// Initialize the rate-limited external API client
	coinGecko := client.NewCoinGeckoClient(cfg.CoinGecko, logger)

	// Initialize services
	authService := service.NewAuthService(userRepo, cfg.Auth, logger)
	priceService := service.NewPriceService(priceRepo, priceCache, cfg.Cache.LatestTTL, logger)
	ingestionService := service.NewIngestionService(coinGecko, priceRepo, publisher, cfg.Ingestion, logger)
	aggregationService := service.NewAggregationService(priceRepo, cfg.Aggregation, logger)
	retentionService := service.NewRetentionService(priceRepo, cfg.Retention, logger)
	backfillService := service.NewBackfillService(coinGecko, priceRepo, cfg.Ingestion.Symbols, cfg.Backfill, logger)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	priceHandler := handler.NewPriceHandler(priceService, ingestionService, logger)

	// Start background loops
	loopCtx, cancelLoops := context.WithCancel(context.Background())
	go ingestionService.Run(loopCtx)
	go aggregationService.Run(loopCtx)
	go retentionService.Run(loopCtx)
	if cfg.Backfill.Enabled {
		go backfillService.Run(loopCtx)
	}

	// Set up HTTP server with Gin
	router := setupRouter(authHandler, priceHandler, authService, logger, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop the background loops; in-flight writes are single idempotent
	// upserts, so abandonment mid-cycle cannot corrupt the store
	cancelLoops()

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited properly")
}

func createLogger(level string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Create logger config
	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func connectToDB(dbConfig config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.DBName,
		dbConfig.SSLMode,
	)

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	return db, nil
}

func buildCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to Redis cache", zap.String("address", cfg.Redis.URL))
		return c, nil
	}
	return cache.NewMemory(cfg.Cache.SweepInterval, logger), nil
}

func setupRouter(
	authHandler *handler.AuthHandler,
	priceHandler *handler.PriceHandler,
	authService *service.AuthService,
	logger *zap.Logger,
	cfg *config.Config,
) *gin.Engine {
	router := gin.New()

	// Use middlewares
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes
		v1.POST("/register", authHandler.Register)
		v1.POST("/token", authHandler.Token)

		// Authenticated routes, throttled per user
		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware(authService, logger))
		authed.Use(middleware.RateLimit(cfg.RateLimit.PerMinute, logger))
		{
			authed.GET("/users/me", authHandler.Me)

			prices := authed.Group("/prices")
			{
				prices.GET("/symbols", priceHandler.GetSymbols)
				prices.GET("/latest/:symbol", priceHandler.GetLatestPrice)
				prices.GET("/:symbol", priceHandler.GetHistoricalPrices)
				prices.POST("/prefetch/:symbol", priceHandler.PrefetchPrice)
			}
		}
	}
	return router
}
