package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/citylist/internal/models"
)

const (
	SessionCookieName = "session"
	sessionIssuer     = "citylist"
)

type SessionClaims struct {
	Username string `json:"username"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies the HS256 tokens carried in the session cookie.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (sm *SessionManager) TTL() time.Duration { return sm.ttl }

func (sm *SessionManager) Issue(user *models.User) (string, error) {
	if user == nil || user.ID.IsZero() {
		return "", errors.New("cannot issue session for user without id")
	}
	now := sm.now()
	claims := SessionClaims{
		Username: user.Username,
		Provider: user.AuthProvider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sm.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %v", err)
	}
	return signed, nil
}

func (sm *SessionManager) Parse(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return sm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session: %v", err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session claims")
	}
	return claims, nil
}
