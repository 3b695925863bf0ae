package models

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	UsersColName = "users"

	AuthProviderLocal    = "local"
	AuthProviderSupabase = "supabase"
)

type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username" validate:"required,min=3,max=30"`
	FirstName    string               `bson:"first_name" json:"first_name"`
	LastName     string               `bson:"last_name" json:"last_name"`
	Email        string               `bson:"email" json:"email" validate:"omitempty,email"`
	PasswordHash string               `bson:"password_hash,omitempty" json:"-"`
	AuthProvider string               `bson:"auth_provider" json:"auth_provider"`
	ExternalID   string               `bson:"external_id,omitempty" json:"-"`
	Favorites    []primitive.ObjectID `bson:"favorites" json:"favorites"`
	CreatedAt    time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at" json:"updated_at"`
}

func (u *User) BeforeCreate() error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.AuthProvider == "" {
		u.AuthProvider = AuthProviderLocal
	}
	if u.Favorites == nil {
		u.Favorites = []primitive.ObjectID{}
	}
	return nil
}

func (u *User) HasFavorite(placeID primitive.ObjectID) bool {
	for _, id := range u.Favorites {
		if id == placeID {
			return true
		}
	}
	return false
}

// ExternalIdentity is what an external auth provider vouches for after a sign-in.
type ExternalIdentity struct {
	Subject string
	Email   string
}

type UserRepo interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// GetUserByExternalID finds the user linked to an external auth subject.
	GetUserByExternalID(ctx context.Context, subject string) (*User, error)
}

// FavouriteRepo mutates User.favorites with conditional updates. Both calls
// return ErrNotFound when the user does not exist or the favourite is
// already in the requested state.
type FavouriteRepo interface {
	AddFavorite(ctx context.Context, userID, placeID primitive.ObjectID) (*User, error)
	RemoveFavorite(ctx context.Context, userID, placeID primitive.ObjectID) (*User, error)
}

// ExternalAuthRepo holds credentials outside the local store. SignUp reports
// ErrConflict when the email is already registered.
type ExternalAuthRepo interface {
	SignUp(ctx context.Context, email, password string) (*ExternalIdentity, error)
	SignIn(ctx context.Context, email, password string) (*ExternalIdentity, error)
}
