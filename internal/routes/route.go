package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/joshua-takyi/citylist/internal/container"
	"github.com/joshua-takyi/citylist/internal/handlers"
	"github.com/joshua-takyi/citylist/internal/middleware"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	binding.EnableDecoderDisallowUnknownFields = true

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     container.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(gin.Recovery())

	secureCookies := container.Config.IsProduction()
	auth := middleware.AuthMiddleware(container.Sessions, container.TokenVerifier, container.UserService, container.Logger)
	limitWrites := container.WriteLimiter.Middleware()

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "OK",
				"service": "citylist-api",
			})
		})

		v1.POST("/signup", limitWrites, handlers.CreateUser(container.UserService))
		v1.POST("/login", limitWrites, handlers.AuthenticateUser(container.UserService, container.Sessions, secureCookies))
		v1.POST("/logout", handlers.Logout(secureCookies))

		v1.GET("/places", handlers.ListPlaces(container.PlaceService, container.Config.DefaultCity))
		v1.GET("/places/:externalId", handlers.GetPlace(container.PlaceService))
	}

	protected := v1.Group("/")
	protected.Use(auth)
	{
		protected.POST("/places/:externalId/ratings", limitWrites, handlers.SubmitRating(container.PlaceService))
		protected.POST("/places/:externalId/comments", limitWrites, handlers.SubmitComment(container.PlaceService))
		protected.POST("/places/:externalId/favorite", limitWrites, handlers.ToggleFavourite(container.FavouritesService))

		protected.GET("/me", handlers.GetCurrentUser(container.UserService))
		protected.GET("/me/favorites", handlers.ListFavourites(container.FavouritesService))
	}

	return r
}
