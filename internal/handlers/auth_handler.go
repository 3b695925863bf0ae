package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/citylist/internal/helpers"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/joshua-takyi/citylist/internal/services"
)

// AuthenticateUser checks credentials and sets the session cookie.
func AuthenticateUser(u *services.UserService, sessions *helpers.SessionManager, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.LoginInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload: "+err.Error())
			return
		}

		user, err := u.Authenticate(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		token, err := sessions.Issue(user)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(
			helpers.SessionCookieName,
			token,
			int(sessions.TTL().Seconds()),
			"/",
			"", // let Gin pick current domain
			secureCookies,
			true,
		)
		c.JSON(http.StatusOK, models.SuccessResponse(user, "logged in"))
	}
}

// Logout handler
func Logout(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(helpers.SessionCookieName, "", -1, "/", "", secureCookies, true)
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "logged out"))
	}
}
