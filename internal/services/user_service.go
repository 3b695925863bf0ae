package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joshua-takyi/citylist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type SignupInput struct {
	Username  string `json:"username" binding:"required" validate:"required,min=3,max=30"`
	FirstName string `json:"firstName" binding:"required" validate:"required,max=100"`
	LastName  string `json:"lastName" binding:"required" validate:"required,max=100"`
	Email     string `json:"email" binding:"required" validate:"required,email"`
	Password  string `json:"password" binding:"required" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserService struct {
	userRepo     models.UserRepo
	externalAuth models.ExternalAuthRepo
	logger       *slog.Logger
}

// NewUserService wires the user store. externalAuth may be nil, in which
// case credentials are checked against locally stored bcrypt hashes.
func NewUserService(userRepo models.UserRepo, externalAuth models.ExternalAuthRepo, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		userRepo:     userRepo,
		externalAuth: externalAuth,
		logger:       logger,
	}
}

// Signup creates a user. With an external auth provider configured the
// password lives there and the local record only links to its subject.
func (us *UserService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.TrimSpace(input.Email)

	if err := models.Validate.Struct(input); err != nil {
		return nil, toValidationError(err)
	}

	now := time.Now().UTC()
	user := &models.User{
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if us.externalAuth != nil {
		// checked up front so a taken username does not leave an orphaned provider account
		_, err := us.userRepo.GetUserByUsername(ctx, input.Username)
		if err == nil {
			return nil, fmt.Errorf("username %q already taken: %w", input.Username, models.ErrConflict)
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}

		identity, err := us.externalAuth.SignUp(ctx, strings.ToLower(input.Email), input.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to register with auth provider: %w", err)
		}
		user.Email = identity.Email
		user.AuthProvider = models.AuthProviderSupabase
		user.ExternalID = identity.Subject
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
		user.AuthProvider = models.AuthProviderLocal
	}

	if err := us.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	us.logger.Info("User signed up", "user_id", user.ID.Hex(), "username", user.Username, "provider", user.AuthProvider)
	return user, nil
}

// Authenticate verifies the credentials and returns the matching local user.
// Every credential failure is reported as ErrNotAuthenticated so callers
// cannot tell unknown usernames from wrong passwords.
func (us *UserService) Authenticate(ctx context.Context, input LoginInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, models.ErrNotAuthenticated
	}

	if us.externalAuth == nil || !strings.Contains(username, "@") {
		user, err := us.userRepo.GetUserByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.ErrNotAuthenticated
			}
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		// local accounts keep their own hash even after a provider is configured
		if us.externalAuth == nil || user.AuthProvider == models.AuthProviderLocal {
			return checkPassword(user, input.Password)
		}
		username = user.Email
	}

	identity, err := us.externalAuth.SignIn(ctx, strings.ToLower(username), input.Password)
	if err != nil {
		us.logger.Info("External sign-in rejected", "username", username, "error", err)
		return nil, models.ErrNotAuthenticated
	}
	return us.ResolveExternalUser(ctx, identity)
}

func checkPassword(user *models.User, password string) (*models.User, error) {
	if user.PasswordHash == "" {
		return nil, models.ErrNotAuthenticated
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrNotAuthenticated
	}
	return user, nil
}

// ResolveExternalUser maps an identity vouched for by Supabase onto a local
// user, creating it on first sign-in with the email as username.
func (us *UserService) ResolveExternalUser(ctx context.Context, identity *models.ExternalIdentity) (*models.User, error) {
	if identity == nil || identity.Subject == "" || identity.Email == "" {
		return nil, models.ErrNotAuthenticated
	}

	user, err := us.userRepo.GetUserByExternalID(ctx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	username := strings.ToLower(identity.Email)
	now := time.Now().UTC()
	user = &models.User{
		Username:     username,
		Email:        username,
		AuthProvider: models.AuthProviderSupabase,
		ExternalID:   identity.Subject,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = us.userRepo.CreateUser(ctx, user)
	if errors.Is(err, models.ErrConflict) {
		// either a concurrent first sign-in won, or a local account owns the name
		existing, ferr := us.userRepo.GetUserByExternalID(ctx, identity.Subject)
		if ferr == nil {
			return existing, nil
		}
		us.logger.Warn("External identity collides with an existing username", "subject", identity.Subject)
		return nil, models.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	us.logger.Info("Created local user for external identity", "user_id", user.ID.Hex(), "subject", identity.Subject)
	return user, nil
}

func (us *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := us.userRepo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", id.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// toValidationError reports the first failing field of a validator error.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return models.NewValidationError(field, "is required")
		case "email":
			return models.NewValidationError(field, "must be a valid email address")
		case "min":
			return models.NewValidationError(field, fmt.Sprintf("must be at least %s characters", fe.Param()))
		case "max":
			return models.NewValidationError(field, fmt.Sprintf("must be at most %s characters", fe.Param()))
		default:
			return models.NewValidationError(field, "failed "+fe.Tag()+" check")
		}
	}
	return models.NewValidationError("body", err.Error())
}
