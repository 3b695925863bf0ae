package helpers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims mirrors the access tokens Supabase Auth issues.
type CustomClaims struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider  string   `json:"provider"`
		Providers []string `json:"providers"`
	} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// TokenVerifier checks Supabase bearer tokens against the project's JWKS.
// The key set is fetched once and refreshed in the background.
type TokenVerifier struct {
	jwks *keyfunc.JWKS
}

func SupabaseJWKSURL(supabaseURL string) string {
	return strings.TrimRight(supabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
}

func NewTokenVerifier(jwksURL string, onRefreshError func(err error)) (*TokenVerifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:     time.Hour,
		RefreshRateLimit:    5 * time.Minute,
		RefreshTimeout:      10 * time.Second,
		RefreshUnknownKID:   true,
		RefreshErrorHandler: onRefreshError,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %v", jwksURL, err)
	}
	return &TokenVerifier{jwks: jwks}, nil
}

// NewTokenVerifierFromJSON builds a verifier from a static key set.
func NewTokenVerifierFromJSON(raw []byte) (*TokenVerifier, error) {
	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %v", err)
	}
	return &TokenVerifier{jwks: jwks}, nil
}

func (tv *TokenVerifier) ValidateToken(tokenStr string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, tv.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %v", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (tv *TokenVerifier) Close() {
	if tv != nil && tv.jwks != nil {
		tv.jwks.EndBackground()
	}
}

func StringTrim(s string) string {
	return strings.TrimSpace(s)
}

// QueryInt reads a non-negative integer query parameter, returning def when absent.
func QueryInt(c *gin.Context, key string, def int) (int, error) {
	raw := StringTrim(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return StringTrim(header[7:])
	}
	return ""
}
