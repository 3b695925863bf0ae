package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/citylist/internal/config"
	"github.com/joshua-takyi/citylist/internal/connect"
	"github.com/joshua-takyi/citylist/internal/container"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting citylist API server", "environment", cfg.Environment, "storage", cfg.StorageDriver)

	var clients container.Clients

	if cfg.StorageDriver == config.StorageMongo {
		mongoClient, err := connect.MongoDBConnect(cfg)
		if err != nil {
			logger.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		logger.Info("Connected to MongoDB successfully")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = models.MongodbNewRepo(mongoClient, cfg.MongoDBDatabase).EnsureIndexes(ctx)
		cancel()
		if err != nil {
			logger.Error("Failed to create MongoDB indexes", "error", err)
			os.Exit(1)
		}
		clients.MongoDB = mongoClient
	} else {
		logger.Warn("Using in-memory storage; data is lost on restart")
	}

	if cfg.RedisEnabled() {
		redisClient, err := connect.RedisConnect(cfg)
		if err != nil {
			// the cache is optional, lookups go straight to the provider
			logger.Warn("Redis unavailable, lookup cache disabled", "error", err)
		} else {
			logger.Info("Connected to Redis successfully")
			clients.Redis = redisClient
		}
	}

	if cfg.SupabaseEnabled() {
		supaClient, err := connect.InitSupabase(cfg)
		if err != nil {
			logger.Error("Failed to connect to Supabase", "error", err)
			os.Exit(1)
		}
		clients.Supabase = supaClient
		logger.Info("Connected to Supabase successfully")

		verifier, err := helpers.NewTokenVerifier(helpers.SupabaseJWKSURL(cfg.SupabaseURL), func(err error) {
			logger.Warn("JWKS refresh failed", "error", err)
		})
		if err != nil {
			logger.Warn("Bearer token authentication disabled", "error", err)
		} else {
			clients.TokenVerifier = verifier
		}
	}

	if cfg.GeoapifyAPIKey == "" {
		logger.Warn("GEOAPIFY_API_KEY is not set; new places will be stored with unknown details")
	}

	appContainer := container.NewContainer(logger, cfg, clients)
	router := routes.SetupRoutes(appContainer)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	appContainer.TokenVerifier.Close()
	if appContainer.RedisClient != nil {
		if err := appContainer.RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis client", "error", err)
		}
	}
	if err := connect.MongoDBDisconnect(appContainer.MongoDBClient); err != nil {
		logger.Error("Error disconnecting from MongoDB", "error", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	if cfg.IsProduction() {
		// JSON logging for production
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel, slog.LevelInfo),
		})
	} else {
		// Human-readable logging for development
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: parseLevel(cfg.LogLevel, slog.LevelDebug),
		})
	}

	return slog.New(handler)
}

func parseLevel(raw string, def slog.Level) slog.Level {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return def
	}
	return level
}
