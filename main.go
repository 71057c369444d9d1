package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jangwonii/contract-gaurdian/config"
	"github.com/jangwonii/contract-gaurdian/handler"
	"github.com/jangwonii/contract-gaurdian/middleware"
	"github.com/jangwonii/contract-gaurdian/pkg/logger"
	"github.com/jangwonii/contract-gaurdian/service"
	"github.com/jangwonii/contract-gaurdian/workflow"
)

func main() {
	configPath := "config.yaml"
	if v := os.Getenv("GUARDIAN_CONFIG"); v != "" {
		configPath = v
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "api_url", cfg.Guardian.APIURL)

	// Initialize services
	guardianSvc := service.NewGuardianService(&cfg.Guardian)

	var archive handler.Archiver
	if cfg.Minio.Enabled() {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize MINIO service", "error", err)
			os.Exit(1)
		}
		if err := minioSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure MINIO bucket", "error", err)
			os.Exit(1)
		}
		archive = minioSvc
	} else {
		slog.Info("report archive disabled, no MINIO endpoint configured")
	}

	limiter, closeLimiter := newLimiter(&cfg.RateLimit)
	defer closeLimiter()

	opts := workflow.Options{
		PollInterval: cfg.Guardian.PollInterval(),
		Limits: workflow.Limits{
			MaxBytes:          cfg.Upload.MaxBytes(),
			AllowedExtensions: cfg.Upload.AllowedExtensions,
		},
		DefaultContractType: cfg.Upload.DefaultContractType,
	}
	store := service.NewSessionStore(&cfg.Store, func(username string) *workflow.Controller {
		return workflow.NewController(logger.WithUsername(context.Background(), username), guardianSvc, opts)
	})

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	sessionHandler := handler.NewSessionHandler(store, archive, cfg.Upload.MaxBytes())

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())     // Request ID for tracing
	router.Use(middleware.Recovery())      // Panic recovery
	router.Use(middleware.RequestLogger()) // Access logging
	router.Use(corsMiddleware())           // CORS
	router.Use(cacheMiddleware())          // Cache control

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"sessions":  store.Count(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", middleware.RateLimit(limiter), authHandler.Login)
	}

	// Protected routes, limited per user
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.Use(middleware.RateLimit(limiter))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		sessionHandler.Register(protected)
	}

	// Uploads and report downloads wait on the analysis service
	writeTimeout := cfg.Guardian.Timeout() + 30*time.Second

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stops every poller and waits for in-flight fetches
	store.CloseAll()

	slog.Info("server exited gracefully")
}

// newLimiter uses redis when configured so limits hold across replicas.
// A redis that cannot be reached at startup falls back to memory.
func newLimiter(cfg *config.RateLimitConfig) (middleware.Limiter, func()) {
	if cfg.RedisURL != "" {
		rl, err := service.NewRedisRateLimiter(cfg.RedisURL, cfg.Requests, cfg.Window())
		if err == nil {
			slog.Info("rate limiter using redis", "requests", cfg.Requests, "window", cfg.Window())
			return rl, func() { rl.Close() }
		}
		slog.Warn("redis unavailable, using in-memory rate limiter", "error", err)
	}
	slog.Info("rate limiter using memory", "requests", cfg.Requests, "window", cfg.Window())
	return middleware.NewRateLimiter(cfg.Requests, cfg.Window()), func() {}
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware keeps session state out of caches
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
