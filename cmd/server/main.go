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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"gemchat-backend/internal/config"
	"gemchat-backend/internal/database"
	"gemchat-backend/internal/handlers"
	"gemchat-backend/internal/logging"
	"gemchat-backend/internal/middleware"
	"gemchat-backend/internal/models"
	"gemchat-backend/internal/observability"
	"gemchat-backend/internal/repository"
	"gemchat-backend/internal/router"
	"gemchat-backend/internal/services"
	"gemchat-backend/migrations"
)

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	SaveChats(ctx context.Context, user *models.User) error
}

func main() {
	log.Println("🚀 Starting Gemchat Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logFile, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Fatalf("✗ Log file setup failed: %v", err)
	}
	defer logFile.Close()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize User Store ────
	var users userStore
	if cfg.DatabaseURL == "" {
		users = repository.NewMemoryUserRepo()
		log.Println("✓ DATABASE_URL not set, using in-memory user store")
	} else {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(pool, migrations.FS); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		users = repository.NewUserRepo(pool)
	}

	// ──── Step 3: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClient.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, services.GeminiOptions{
		ConcurrentReqs: cfg.GeminiConcurrentReqs,
		SlotWait:       cfg.GeminiSlotWait,
		Timeout:        cfg.GeminiTimeout,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Initialize Services ────
	metrics := observability.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := services.NewAuthService(users, services.NewRedisTokenStore(redisClient), jwtAuth)
	chatService := services.NewChatService(
		users,
		geminiService,
		services.NewRedisLocker(redisClient, cfg.ChatLockTTL, cfg.ChatLockWait),
		metrics,
		services.ChatOptions{PersistUserTurns: cfg.PersistUserTurns},
	)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService, handlers.CookieOptions{
		Domain: cfg.CookieDomain,
		Secure: cfg.IsProduction(),
		MaxAge: cfg.AccessTokenTTL,
	}, metrics)
	chatHandler := handlers.NewChatHandler(chatService)

	// ──── Step 5: Start HTTP Server ────
	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	defer authLimiter.Stop()

	r := router.New(
		jwtAuth,
		authLimiter,
		authHandler,
		chatHandler,
		observability.MetricsHandler(prometheus.DefaultGatherer),
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Gemchat Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API:  http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  Chat: http://localhost:%s/chat", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
