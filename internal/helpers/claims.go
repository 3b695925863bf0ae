package helpers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContextUserKey is where the auth middleware stores *AuthClaims.
const ContextUserKey = "user"

// AuthClaims is the caller identity resolved by the auth middleware,
// whichever credential it came from.
type AuthClaims struct {
	UserID   string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

func (ac *AuthClaims) ObjectID() (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(ac.UserID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("invalid user id in claims: %v", err)
	}
	return id, nil
}

func ClaimsFromContext(c *gin.Context) (*AuthClaims, bool) {
	v, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*AuthClaims)
	return claims, ok && claims != nil
}
