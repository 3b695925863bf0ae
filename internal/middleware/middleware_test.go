package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthRouter(t *testing.T) (*gin.Engine, *helpers.SessionManager, *models.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := models.NewMemoryRepo()
	sessions := helpers.NewSessionManager("test-secret", time.Hour)
	users := services.NewUserService(repo, nil, quietLogger())

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", AuthMiddleware(sessions, nil, users, quietLogger()), func(c *gin.Context) {
		claims, ok := helpers.ClaimsFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": claims.UserID})
	})
	return r, sessions, repo
}

func TestAuthMiddlewareAcceptsSessionCookie(t *testing.T) {
	r, sessions, repo := newAuthRouter(t)
	user := &models.User{Username: "alice"}
	require.NoError(t, repo.CreateUser(t.Context(), user))
	token, err := sessions.Issue(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: helpers.SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.ID.Hex())
}

func TestAuthMiddlewareRejects(t *testing.T) {
	r, _, _ := newAuthRouter(t)

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{name: "no credentials", setup: func(*http.Request) {}},
		{name: "tampered cookie", setup: func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: helpers.SessionCookieName, Value: "abc.def.ghi"})
		}},
		{name: "bearer without verifier", setup: func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer abc.def.ghi")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			var body models.ApiResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), ErrorHandler(quietLogger()))
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("mongo: connection reset"))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.NotContains(t, w.Body.String(), "mongo")
	assert.Contains(t, w.Body.String(), "req-42")
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, quietLogger())
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/write", NewRateLimiter(0.001, 1, quietLogger()).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
