package container

import (
	"log/slog"

	"github.com/joshua-takyi/citylist/internal/config"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/lookup"
	"github.com/joshua-takyi/citylist/internal/middleware"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Clients are the external connections the container wires into repositories.
// Any of them may be nil: a nil MongoDB client selects the in-memory store,
// a nil Redis client disables the lookup cache and a nil Supabase client
// keeps credential checks local.
type Clients struct {
	MongoDB       *mongo.Client
	Redis         *redis.Client
	Supabase      *supabase.Client
	TokenVerifier *helpers.TokenVerifier
	Provider      lookup.Provider
}

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config

	MongoDBClient *mongo.Client
	RedisClient   *redis.Client

	Sessions      *helpers.SessionManager
	TokenVerifier *helpers.TokenVerifier
	WriteLimiter  *middleware.RateLimiter

	PlaceService      *services.PlaceService
	UserService       *services.UserService
	FavouritesService *services.FavouriteService
}

// NewContainer creates a new dependency injection container
func NewContainer(logger *slog.Logger, cfg *config.Config, clients Clients) *Container {
	var (
		placeRepo models.PlaceRepo
		userRepo  models.UserRepo
		favRepo   models.FavouriteRepo
	)
	if clients.MongoDB != nil {
		mongoRepo := models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase)
		placeRepo, userRepo, favRepo = mongoRepo, mongoRepo, mongoRepo
	} else {
		memRepo := models.NewMemoryRepo()
		placeRepo, userRepo, favRepo = memRepo, memRepo, memRepo
	}

	provider := clients.Provider
	if provider == nil {
		provider = lookup.NewGeoapifyClient(lookup.Config{
			APIKey:  cfg.GeoapifyAPIKey,
			BaseURL: cfg.GeoapifyBaseURL,
			Timeout: cfg.LookupTimeout,
		})
	}
	if clients.Redis != nil {
		provider = lookup.NewCachedProvider(provider, lookup.NewRedisCache(clients.Redis), cfg.LookupCacheTTL, logger)
	}

	var externalAuth models.ExternalAuthRepo
	if clients.Supabase != nil {
		externalAuth = models.SupabaseNewRepo(clients.Supabase)
	}

	return &Container{
		Logger:            logger,
		Config:            cfg,
		MongoDBClient:     clients.MongoDB,
		RedisClient:       clients.Redis,
		Sessions:          helpers.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL),
		TokenVerifier:     clients.TokenVerifier,
		WriteLimiter:      middleware.NewRateLimiter(cfg.WriteRateLimit, cfg.WriteRateBurst, logger),
		PlaceService:      services.NewPlaceService(placeRepo, userRepo, provider, cfg.LookupTimeout, logger),
		UserService:       services.NewUserService(userRepo, externalAuth, logger),
		FavouritesService: services.NewFavouriteService(favRepo, userRepo, placeRepo, logger),
	}
}
