package helpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joshua-takyi/citylist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testUser() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Username: "alice", AuthProvider: models.AuthProviderLocal}
}

func TestSessionRoundTrip(t *testing.T) {
	sm := NewSessionManager("secret", time.Hour)
	user := testUser()

	token, err := sm.Issue(user)
	require.NoError(t, err)

	claims, err := sm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.Subject)
	assert.Equal(t, "alice", claims.Username)
}

func TestSessionRejections(t *testing.T) {
	sm := NewSessionManager("secret", time.Hour)
	token, err := sm.Issue(testUser())
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewSessionManager("other", time.Hour).Parse(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewSessionManager("secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   primitive.NewObjectID().Hex(),
			Issuer:    sessionIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = sm.Parse(unsigned)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := sm.Parse("not-a-token")
		assert.Error(t, err)
	})
}

func TestIssueRequiresUserID(t *testing.T) {
	_, err := NewSessionManager("secret", time.Hour).Issue(&models.User{Username: "x"})
	assert.Error(t, err)
}

func jwksFor(t *testing.T, key *rsa.PrivateKey, kid string) []byte {
	t.Helper()
	enc := base64.RawURLEncoding
	raw, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   enc.EncodeToString(key.N.Bytes()),
			"e":   enc.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	require.NoError(t, err)
	return raw
}

func TestTokenVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	verifier, err := NewTokenVerifierFromJSON(jwksFor(t, key, "k1"))
	require.NoError(t, err)
	defer verifier.Close()

	sign := func(k *rsa.PrivateKey, claims CustomClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "k1"
		s, err := tok.SignedString(k)
		require.NoError(t, err)
		return s
	}

	good := CustomClaims{Email: "bob@example.com", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "2d1f0c1e-2f0b-4a39-9d0a-8c8d7e4a1b00",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}

	claims, err := verifier.ValidateToken(sign(key, good))
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(sign(other, good))
	assert.Error(t, err)

	expired := good
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = verifier.ValidateToken(sign(key, expired))
	assert.Error(t, err)
}

func TestQueryIntAndBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/places?limit=10&offset=-2&bad=x", nil)
	c.Request.Header.Set("Authorization", "Bearer abc.def.ghi")

	n, err := QueryInt(c, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = QueryInt(c, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = QueryInt(c, "offset", 0)
	assert.Error(t, err)
	_, err = QueryInt(c, "bad", 0)
	assert.Error(t, err)

	assert.Equal(t, "abc.def.ghi", BearerToken(c))
}
