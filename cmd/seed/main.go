package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/citylist/internal/config"
	"github.com/joshua-takyi/citylist/internal/connect"
	"github.com/joshua-takyi/citylist/internal/lookup"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/seed"
	"github.com/joshua-takyi/citylist/internal/services"
)

func main() {
	var (
		seedPath = flag.String("file", "configs/seed.yaml", "path to the seed YAML file")
		dryRun   = flag.Bool("dry-run", false, "print what would be ingested without writing")
	)
	flag.Parse()

	_ = godotenv.Load(".env.local")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.GeoapifyAPIKey == "" {
		logger.Error("GEOAPIFY_API_KEY is required for seeding")
		os.Exit(1)
	}
	if cfg.StorageDriver != config.StorageMongo && !*dryRun {
		logger.Error("Seeding writes to MongoDB; set STORAGE_DRIVER=mongo or pass --dry-run")
		os.Exit(1)
	}

	file, err := seed.Load(*seedPath)
	if err != nil {
		logger.Error("Failed to load seed file", "path", *seedPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := lookup.NewGeoapifyClient(lookup.Config{
		APIKey:  cfg.GeoapifyAPIKey,
		BaseURL: cfg.GeoapifyBaseURL,
		Timeout: cfg.LookupTimeout,
	})

	var placeRepo models.PlaceRepo
	var userRepo models.UserRepo
	if *dryRun {
		mem := models.NewMemoryRepo()
		placeRepo, userRepo = mem, mem
	} else {
		mongoClient, err := connect.MongoDBConnect(cfg)
		if err != nil {
			logger.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := connect.MongoDBDisconnect(mongoClient); err != nil {
				logger.Error("Error disconnecting from MongoDB", "error", err)
			}
		}()

		repo := models.MongodbNewRepo(mongoClient, cfg.MongoDBDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.Error("Failed to create MongoDB indexes", "error", err)
			os.Exit(1)
		}
		placeRepo, userRepo = repo, repo
	}

	ledger := services.NewPlaceService(placeRepo, userRepo, client, cfg.LookupTimeout, logger)

	stats, err := seed.Run(ctx, file, client, ledger, *dryRun, logger)
	if err != nil {
		logger.Error("Seeding interrupted", "error", err, "ingested", stats.Ingested)
		os.Exit(1)
	}
	logger.Info("Seeding finished",
		"found", stats.Found,
		"ingested", stats.Ingested,
		"failed", stats.Failed,
		"dry_run", *dryRun,
	)
}
