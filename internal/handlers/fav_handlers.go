package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/services"
)

func ToggleFavourite(f *services.FavouriteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		res, err := f.ToggleFavorite(c.Request.Context(), userID, helpers.StringTrim(c.Param("externalId")))
		if err != nil {
			respondError(c, err)
			return
		}

		msg := "removed from favourites"
		if res.Added {
			msg = "added to favourites"
		}
		c.JSON(http.StatusOK, models.SuccessResponse(res, msg))
	}
}

func ListFavourites(f *services.FavouriteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		places, err := f.ListFavorites(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(places, ""))
	}
}
