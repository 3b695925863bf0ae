package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondError maps domain errors onto status codes. Anything unrecognised
// is attached to the context for the ErrorHandler middleware to log and
// answer with an opaque 500.
func respondError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, withRequestID(c, models.ErrorResponse(verr.Error())))
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, withRequestID(c, models.ErrorResponse(err.Error())))
	case errors.Is(err, models.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, withRequestID(c, models.ErrorResponse("not authenticated")))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, withRequestID(c, models.ErrorResponse(err.Error())))
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, withRequestID(c, models.ErrorResponse(err.Error())))
	default:
		_ = c.Error(err)
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, withRequestID(c, models.ErrorResponse(msg)))
}

func withRequestID(c *gin.Context, res models.ApiResponse) models.ApiResponse {
	if id, ok := c.Get("request_id"); ok {
		res.RequestID, _ = id.(string)
	}
	return res
}

// currentUserID reads the caller's id from the claims set by AuthMiddleware.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	claims, ok := helpers.ClaimsFromContext(c)
	if !ok {
		respondError(c, models.ErrNotAuthenticated)
		return primitive.NilObjectID, false
	}
	id, err := claims.ObjectID()
	if err != nil {
		respondError(c, models.ErrNotAuthenticated)
		return primitive.NilObjectID, false
	}
	return id, true
}
