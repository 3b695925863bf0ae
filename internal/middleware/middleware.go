package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/services"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if claims, ok := helpers.ClaimsFromContext(c); ok {
			attrs = append(attrs, "user_id", claims.UserID)
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("HTTP Request", attrs...)
			return
		}
		logger.Info("HTTP Request", attrs...)
	}
}

// ErrorHandler turns errors attached with c.Error into an opaque 500.
// Handlers that already wrote a response are left alone.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if c.Writer.Written() {
			return
		}
		res := models.ErrorResponse("internal server error")
		if id, ok := requestID.(string); ok {
			res.RequestID = id
		}
		c.JSON(http.StatusInternalServerError, res)
	}
}

// AuthMiddleware resolves the caller from the session cookie or, when a
// verifier is configured, from a Supabase bearer token. Unauthenticated
// requests are rejected before any handler runs.
func AuthMiddleware(sessions *helpers.SessionManager, verifier *helpers.TokenVerifier, userService *services.UserService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(helpers.SessionCookieName); err == nil && token != "" {
			claims, err := sessions.Parse(token)
			if err == nil {
				c.Set(helpers.ContextUserKey, &helpers.AuthClaims{
					UserID:   claims.Subject,
					Username: claims.Username,
					Provider: claims.Provider,
				})
				c.Next()
				return
			}
			logger.Debug("Rejected session cookie", "error", err)
		}

		if bearer := helpers.BearerToken(c); bearer != "" && verifier != nil {
			claims, err := verifier.ValidateToken(bearer)
			if err != nil {
				logger.Debug("Rejected bearer token", "error", err)
				unauthorized(c, "invalid or expired token")
				return
			}

			user, err := userService.ResolveExternalUser(c.Request.Context(), &models.ExternalIdentity{
				Subject: claims.Subject,
				Email:   claims.Email,
			})
			if err != nil {
				logger.Error("Failed to resolve user for bearer token", "subject", claims.Subject, "error", err)
				unauthorized(c, "unknown user")
				return
			}

			c.Set(helpers.ContextUserKey, &helpers.AuthClaims{
				UserID:   user.ID.Hex(),
				Username: user.Username,
				Email:    user.Email,
				Provider: models.AuthProviderSupabase,
			})
			c.Next()
			return
		}

		unauthorized(c, "authentication required")
	}
}

func unauthorized(c *gin.Context, msg string) {
	res := models.ErrorResponse(msg)
	if id, ok := c.Get("request_id"); ok {
		res.RequestID, _ = id.(string)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, res)
}
