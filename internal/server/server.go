package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mealmetrics/backend/config"
	"github.com/mealmetrics/backend/internal/api"
	"github.com/mealmetrics/backend/internal/database"
	"github.com/mealmetrics/backend/internal/middleware"
	"github.com/mealmetrics/backend/internal/router"
	"github.com/mealmetrics/backend/internal/service"
)

// Server wires the application together and owns the HTTP listener.
type Server struct {
	http  *http.Server
	db    *gorm.DB
	redis *redis.Client
}

// New builds the full application from configuration: database, Redis,
// optional S3 photo archive, the analysis pipeline, and the HTTP routes.
func New(cfg *config.Config) (*Server, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Photo archival is optional. Without S3 credentials analyses still
	// work, confirmed meals just have no stored photo.
	var photoService *service.PhotoService
	s3Config, err := config.NewS3Config(context.Background())
	if err != nil {
		log.Printf("[Server] S3 unavailable, photo archival disabled: %v", err)
	} else {
		photoService = service.NewPhotoService(s3Config)
	}

	dispatcher := service.NewDispatcher(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, cfg.PrimaryModel, cfg.FallbackModels)
	visionService := service.NewVisionService(dispatcher)
	pendingStore := service.NewPendingMealStore(redisClient)
	mealService := service.NewMealService(db, cfg.DisplayUTCOffset)
	authService := service.NewAuthService(cfg.JWTSecret, cfg.GatewaySecret)
	rateLimiter := middleware.NewAnalyzeRateLimiter(redisClient)

	mealHandler := api.NewMealHandler(visionService, pendingStore, mealService, photoService, authService, rateLimiter, cfg.MaxImageSizeMB)
	authHandler := api.NewAuthHandler(authService, mealService)

	engine := router.SetupRouter(authHandler, mealHandler)

	return &Server{
		http: &http.Server{
			Addr:              cfg.ServerHost + ":" + cfg.ServerPort,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		db:    db,
		redis: redisClient,
	}, nil
}

// Start runs the HTTP listener until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[Server] listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := s.redis.Close(); err != nil {
		log.Printf("[Server] failed to close redis: %v", err)
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("[Server] failed to close database: %v", err)
		}
	}
	return nil
}
