package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/services"
)

type ratingRequest struct {
	Rating   *int   `json:"rating" binding:"required"`
	Category string `json:"category" binding:"omitempty,max=64"`
}

type commentRequest struct {
	Text     string `json:"text" binding:"required"`
	Category string `json:"category" binding:"omitempty,max=64"`
}

// ListPlaces lists one category. Without a city parameter the listing is
// scoped to defaultCity; an explicit empty ?city= lists every city.
func ListPlaces(p *services.PlaceService, defaultCity string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := helpers.QueryInt(c, "limit", services.DefaultPageSize)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		limit = min(limit, services.MaxPageSize)
		offset, err := helpers.QueryInt(c, "offset", 0)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		city, ok := c.GetQuery("city")
		if !ok {
			city = defaultCity
		}

		filter := models.PlaceFilter{
			Category: helpers.StringTrim(c.Query("category")),
			City:     helpers.StringTrim(city),
			Offset:   offset,
			Limit:    limit,
		}
		places, total, err := p.ListByCategory(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		if limit == 0 {
			limit = services.DefaultPageSize
		}
		page := offset/limit + 1
		c.JSON(http.StatusOK, models.PaginatedResponse(places, page, limit, total))
	}
}

func GetPlace(p *services.PlaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		place, err := p.GetPlace(c.Request.Context(), helpers.StringTrim(c.Param("externalId")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(place, ""))
	}
}

func SubmitRating(p *services.PlaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req ratingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload: "+err.Error())
			return
		}

		place, err := p.SubmitRating(c.Request.Context(), helpers.StringTrim(c.Param("externalId")), userID, *req.Rating, req.Category)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(place, "rating saved"))
	}
}

func SubmitComment(p *services.PlaceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}

		var req commentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload: "+err.Error())
			return
		}

		place, err := p.SubmitComment(c.Request.Context(), helpers.StringTrim(c.Param("externalId")), userID, req.Text, req.Category)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(place, "comment added"))
	}
}
