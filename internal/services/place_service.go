package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshua-takyi/citylist/internal/lookup"
	"github.com/joshua-takyi/citylist/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultLookupTimeout = 5 * time.Second
	DefaultPageSize      = 50
	MaxPageSize          = 200

	// bounds the set-then-push loop in SubmitRating
	maxRatingAttempts = 3
)

// PlaceService is the ledger for places and the ratings and comments attached to them.
type PlaceService struct {
	placeRepo     models.PlaceRepo
	userRepo      models.UserRepo
	provider      lookup.Provider
	lookupTimeout time.Duration
	logger        *slog.Logger
	group         singleflight.Group
	now           func() time.Time
}

func NewPlaceService(placeRepo models.PlaceRepo, userRepo models.UserRepo, provider lookup.Provider, lookupTimeout time.Duration, logger *slog.Logger) *PlaceService {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaceService{
		placeRepo:     placeRepo,
		userRepo:      userRepo,
		provider:      provider,
		lookupTimeout: lookupTimeout,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreate returns the place for externalID, creating it from the lookup
// provider on first sight. Provider failures never fail the call. A place
// still without a category takes categoryHint.
func (ps *PlaceService) FindOrCreate(ctx context.Context, externalID, categoryHint string) (*models.Place, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, models.NewValidationError("external_id", "must not be empty")
	}

	place, err := ps.placeRepo.GetPlaceByExternalID(ctx, externalID)
	if err == nil {
		return ps.backfillCategory(ctx, place, categoryHint)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to find place %s: %w", externalID, err)
	}

	details := ps.describe(ctx, externalID)
	place = models.NewPlace(externalID, details, categoryHint, ps.now())

	err = ps.placeRepo.InsertPlace(ctx, place)
	if err == nil {
		ps.logger.Info("Place created", "external_id", externalID, "category", place.Category)
		return place, nil
	}
	if !errors.Is(err, models.ErrDuplicateKey) {
		return nil, fmt.Errorf("failed to create place %s: %w", externalID, err)
	}

	ps.logger.Debug("Lost place insert race, re-fetching", "external_id", externalID)
	place, err = ps.placeRepo.GetPlaceByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch place %s after insert race: %w", externalID, err)
	}
	return ps.backfillCategory(ctx, place, categoryHint)
}

func (ps *PlaceService) backfillCategory(ctx context.Context, place *models.Place, hint string) (*models.Place, error) {
	hint = strings.TrimSpace(hint)
	if place.Category != "" || hint == "" {
		return place, nil
	}
	updated, err := ps.placeRepo.SetCategoryIfEmpty(ctx, place.ExternalID, hint)
	if err != nil {
		return nil, fmt.Errorf("failed to set category on place %s: %w", place.ExternalID, err)
	}
	return updated, nil
}

// describe resolves details through the provider, sharing one call across
// concurrent callers and falling back to sentinels on any failure.
func (ps *PlaceService) describe(ctx context.Context, externalID string) models.PlaceDetails {
	if ps.provider == nil {
		return models.UnknownDetails()
	}

	v, err, _ := ps.group.Do(externalID, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ps.lookupTimeout)
		defer cancel()
		return ps.provider.Lookup(lookupCtx, externalID)
	})
	if err != nil {
		ps.logger.Warn("Place lookup failed, using unknown values",
			"external_id", externalID,
			"error", err,
		)
		return models.UnknownDetails()
	}

	details, ok := v.(*models.PlaceDetails)
	if !ok || details == nil {
		ps.logger.Warn("Place lookup returned no details, using unknown values", "external_id", externalID)
		return models.UnknownDetails()
	}
	return details.WithDefaults()
}

// SubmitRating records the user's score for the place, replacing any score
// they gave before.
func (ps *PlaceService) SubmitRating(ctx context.Context, externalID string, userID primitive.ObjectID, score int, categoryHint string) (*models.Place, error) {
	if err := models.ValidateScore(score); err != nil {
		return nil, err
	}
	if err := ps.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	place, err := ps.FindOrCreate(ctx, externalID, categoryHint)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxRatingAttempts; attempt++ {
		now := ps.now()

		updated, err := ps.placeRepo.SetRatingScore(ctx, place.ExternalID, userID, score, now)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to update rating: %w", err)
		}

		updated, err = ps.placeRepo.PushRating(ctx, place.ExternalID, models.Rating{
			UserID:    userID,
			Score:     score,
			UpdatedAt: now,
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, models.ErrRatingExists) {
			return nil, fmt.Errorf("failed to add rating: %w", err)
		}
		// a concurrent request from the same user appended first; overwrite it
	}
	return nil, fmt.Errorf("failed to record rating for %s after %d attempts", place.ExternalID, maxRatingAttempts)
}

// SubmitComment appends a comment. Comments are never merged or deduplicated.
func (ps *PlaceService) SubmitComment(ctx context.Context, externalID string, userID primitive.ObjectID, text, categoryHint string) (*models.Place, error) {
	trimmed, err := models.NormalizeComment(text)
	if err != nil {
		return nil, err
	}
	if err := ps.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	place, err := ps.FindOrCreate(ctx, externalID, categoryHint)
	if err != nil {
		return nil, err
	}

	updated, err := ps.placeRepo.PushComment(ctx, place.ExternalID, models.Comment{
		UserID:    userID,
		Text:      trimmed,
		CreatedAt: ps.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return updated, nil
}

// ListByCategory returns places whose category matches exactly, ordered by external id.
func (ps *PlaceService) ListByCategory(ctx context.Context, filter models.PlaceFilter) ([]*models.Place, int, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.City = strings.TrimSpace(filter.City)
	if filter.Category == "" {
		return nil, 0, models.NewValidationError("category", "is required")
	}
	if filter.Offset < 0 {
		return nil, 0, models.NewValidationError("offset", "must not be negative")
	}
	switch {
	case filter.Limit < 0:
		return nil, 0, models.NewValidationError("limit", "must not be negative")
	case filter.Limit == 0:
		filter.Limit = DefaultPageSize
	case filter.Limit > MaxPageSize:
		filter.Limit = MaxPageSize
	}

	places, total, err := ps.placeRepo.ListPlaces(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list places: %w", err)
	}
	return places, total, nil
}

func (ps *PlaceService) GetPlace(ctx context.Context, externalID string) (*models.Place, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, models.NewValidationError("external_id", "must not be empty")
	}
	place, err := ps.placeRepo.GetPlaceByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("place %s: %w", externalID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get place %s: %w", externalID, err)
	}
	return place, nil
}

func (ps *PlaceService) requireUser(ctx context.Context, userID primitive.ObjectID) error {
	if userID.IsZero() {
		return models.ErrNotAuthenticated
	}
	if _, err := ps.userRepo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("user %s: %w", userID.Hex(), models.ErrNotFound)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	return nil
}
