package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshua-takyi/citylist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxToggleAttempts = 3

type FavouriteService struct {
	favouritesRepo models.FavouriteRepo
	userRepo       models.UserRepo
	placeRepo      models.PlaceRepo
	logger         *slog.Logger
}

func NewFavouriteService(favouritesRepo models.FavouriteRepo, userRepo models.UserRepo, placeRepo models.PlaceRepo, logger *slog.Logger) *FavouriteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FavouriteService{
		favouritesRepo: favouritesRepo,
		userRepo:       userRepo,
		placeRepo:      placeRepo,
		logger:         logger,
	}
}

// ToggleResult reports the user after the toggle and whether the place was added.
type ToggleResult struct {
	User  *models.User `json:"user"`
	Added bool         `json:"added"`
}

// ToggleFavorite removes the place from the user's favourites when present
// and adds it otherwise.
func (fs *FavouriteService) ToggleFavorite(ctx context.Context, userID primitive.ObjectID, externalID string) (*ToggleResult, error) {
	if userID.IsZero() {
		return nil, models.ErrNotAuthenticated
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, models.NewValidationError("external_id", "must not be empty")
	}

	place, err := fs.placeRepo.GetPlaceByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("place %s: %w", externalID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get place %s: %w", externalID, err)
	}

	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		user, err := fs.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, fmt.Errorf("user %s: %w", userID.Hex(), models.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to get user: %w", err)
		}

		adding := !user.HasFavorite(place.ID)
		var updated *models.User
		if adding {
			updated, err = fs.favouritesRepo.AddFavorite(ctx, userID, place.ID)
		} else {
			updated, err = fs.favouritesRepo.RemoveFavorite(ctx, userID, place.ID)
		}
		if errors.Is(err, models.ErrNotFound) {
			// another toggle changed the set between our read and write
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update favourites: %w", err)
		}

		// the next toggle on this place recounts, so a failure here is not fatal
		if err := fs.placeRepo.RecountFavorites(ctx, place.ID); err != nil {
			fs.logger.Warn("Failed to recount favourites",
				"external_id", externalID,
				"error", err,
			)
		}
		return &ToggleResult{User: updated, Added: adding}, nil
	}
	return nil, fmt.Errorf("failed to toggle favourite %s after %d attempts", externalID, maxToggleAttempts)
}

// ListFavorites returns the user's favourite places in the order they were added.
func (fs *FavouriteService) ListFavorites(ctx context.Context, userID primitive.ObjectID) ([]*models.Place, error) {
	if userID.IsZero() {
		return nil, models.ErrNotAuthenticated
	}
	user, err := fs.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(user.Favorites) == 0 {
		return []*models.Place{}, nil
	}
	places, err := fs.placeRepo.GetPlacesByIDs(ctx, user.Favorites)
	if err != nil {
		return nil, fmt.Errorf("failed to get favourite places: %w", err)
	}
	return places, nil
}
