package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/gotrue-go/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (mdb *MongodbRepo) CreateUser(ctx context.Context, user *User) error {
	if err := user.BeforeCreate(); err != nil {
		return fmt.Errorf("failed to prepare user for creation: %w", err)
	}
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	if _, err := col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("username %q already taken: %w", user.Username, ErrConflict)
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return mdb.findUser(ctx, bson.M{"_id": id})
}

func (mdb *MongodbRepo) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return mdb.findUser(ctx, bson.M{"username": strings.TrimSpace(username)})
}

func (mdb *MongodbRepo) GetUserByExternalID(ctx context.Context, subject string) (*User, error) {
	if subject == "" {
		return nil, ErrNotFound
	}
	return mdb.findUser(ctx, bson.M{"external_id": subject})
}

func (mdb *MongodbRepo) findUser(ctx context.Context, filter bson.M) (*User, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var user User
	if err := col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding user: %w", err)
	}
	return &user, nil
}

// SignUp registers an email/password pair with Supabase Auth.
func (su *SupabaseRepo) SignUp(ctx context.Context, email, password string) (*ExternalIdentity, error) {
	if su.supabaseClient == nil {
		return nil, fmt.Errorf("supabase client is not initialized")
	}
	res, err := su.supabaseClient.Auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "already registered") || strings.Contains(msg, "already exists") {
			return nil, fmt.Errorf("email %q already in use: %w", email, ErrConflict)
		}
		if strings.Contains(msg, "password") {
			return nil, NewValidationError("password", "was rejected by the auth provider")
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	if res == nil {
		return nil, fmt.Errorf("signup response carried no user")
	}
	// with autoconfirm on the user comes back inside the session
	registered := res.User
	if registered.Email == "" {
		registered = res.Session.User
	}
	if registered.Email == "" {
		return nil, fmt.Errorf("signup response carried no user")
	}
	return &ExternalIdentity{
		Subject: registered.ID.String(),
		Email:   strings.ToLower(registered.Email),
	}, nil
}

// SignIn verifies an email/password pair against Supabase Auth.
func (su *SupabaseRepo) SignIn(ctx context.Context, email, password string) (*ExternalIdentity, error) {
	if su.supabaseClient == nil {
		return nil, fmt.Errorf("supabase client is not initialized")
	}
	resp, err := su.supabaseClient.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate user: %v: %w", err, ErrNotAuthenticated)
	}
	if resp == nil || resp.AccessToken == "" {
		return nil, fmt.Errorf("invalid token response: %w", ErrNotAuthenticated)
	}
	return &ExternalIdentity{
		Subject: resp.User.ID.String(),
		Email:   strings.ToLower(resp.User.Email),
	}, nil
}
