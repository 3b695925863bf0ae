package models

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PlacesColName = "places"

	MinScore         = 1
	MaxScore         = 5
	MaxCommentLength = 2000
)

// Sentinel values stored when the lookup provider cannot describe a place.
const (
	UnknownName    = "Unknown Place"
	UnknownAddress = "Unknown Address"
	UnknownCity    = "Unknown City"
	UnknownPhone   = "Unknown Phone"
	UnknownWebsite = "Unknown Website"
)

type Rating struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Score     int                `bson:"score" json:"score"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type Comment struct {
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Place is a point of interest keyed by the identifier the places API assigned to it.
type Place struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ExternalID         string             `bson:"external_id" json:"external_id"`
	Name               string             `bson:"name" json:"name"`
	Address            string             `bson:"address" json:"address"`
	City               string             `bson:"city" json:"city"`
	Phone              string             `bson:"phone" json:"phone"`
	Website            string             `bson:"website" json:"website"`
	Category           string             `bson:"category,omitempty" json:"category,omitempty"`
	Ratings            []Rating           `bson:"ratings" json:"ratings"`
	Comments           []Comment          `bson:"comments" json:"comments"`
	FavoriteCount      int                `bson:"favorite_count" json:"favorite_count"`
	// when the latest favourite count began; older counts never overwrite it
	FavoritesCountedAt time.Time          `bson:"favorites_counted_at,omitempty" json:"-"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// PlaceDetails are the descriptive fields resolved from the places API.
type PlaceDetails struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

// UnknownDetails returns the all-sentinel description used when a lookup fails.
func UnknownDetails() PlaceDetails {
	return PlaceDetails{
		Name:    UnknownName,
		Address: UnknownAddress,
		City:    UnknownCity,
		Phone:   UnknownPhone,
		Website: UnknownWebsite,
	}
}

// WithDefaults fills blank fields with their sentinel.
func (d PlaceDetails) WithDefaults() PlaceDetails {
	unknown := UnknownDetails()
	if strings.TrimSpace(d.Name) == "" {
		d.Name = unknown.Name
	}
	if strings.TrimSpace(d.Address) == "" {
		d.Address = unknown.Address
	}
	if strings.TrimSpace(d.City) == "" {
		d.City = unknown.City
	}
	if strings.TrimSpace(d.Phone) == "" {
		d.Phone = unknown.Phone
	}
	if strings.TrimSpace(d.Website) == "" {
		d.Website = unknown.Website
	}
	return d
}

func NewPlace(externalID string, details PlaceDetails, category string, now time.Time) *Place {
	details = details.WithDefaults()
	return &Place{
		ExternalID: externalID,
		Name:       details.Name,
		Address:    details.Address,
		City:       details.City,
		Phone:      details.Phone,
		Website:    details.Website,
		Category:   strings.TrimSpace(category),
		Ratings:    []Rating{},
		Comments:   []Comment{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// BeforeCreate assigns an identity and makes sure the array fields are
// persisted as arrays, since $push fails on a null field.
func (p *Place) BeforeCreate() error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Ratings == nil {
		p.Ratings = []Rating{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	return nil
}

// RatingBy returns the rating the user left on the place, if any.
func (p *Place) RatingBy(userID primitive.ObjectID) (Rating, bool) {
	for _, r := range p.Ratings {
		if r.UserID == userID {
			return r, true
		}
	}
	return Rating{}, false
}

func (p *Place) AverageRating() float64 {
	if len(p.Ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Score
	}
	return float64(sum) / float64(len(p.Ratings))
}

func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return NewValidationError("rating", "must be an integer between 1 and 5")
	}
	return nil
}

// NormalizeComment trims the text and rejects blank or oversized comments.
func NormalizeComment(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", NewValidationError("text", "must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxCommentLength {
		return "", NewValidationError("text", "must be at most 2000 characters")
	}
	return trimmed, nil
}

// PlaceFilter selects places for listing. Category is an exact match.
type PlaceFilter struct {
	Category string
	City     string
	Offset   int
	Limit    int
}

type PlaceRepo interface {
	GetPlaceByExternalID(ctx context.Context, externalID string) (*Place, error)
	// InsertPlace returns ErrDuplicateKey when another writer created the same external id first.
	InsertPlace(ctx context.Context, place *Place) error
	// SetRatingScore overwrites the user's existing rating; ErrNotFound when the user has none.
	SetRatingScore(ctx context.Context, externalID string, userID primitive.ObjectID, score int, at time.Time) (*Place, error)
	// PushRating appends a rating unless the user already has one (ErrRatingExists).
	PushRating(ctx context.Context, externalID string, rating Rating) (*Place, error)
	PushComment(ctx context.Context, externalID string, comment Comment) (*Place, error)
	ListPlaces(ctx context.Context, filter PlaceFilter) ([]*Place, int, error)
	GetPlacesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Place, error)
	// RecountFavorites sets favorite_count to the number of users holding the place.
	RecountFavorites(ctx context.Context, placeID primitive.ObjectID) error
	// SetCategoryIfEmpty tags an uncategorised place; a place that already has
	// a category is returned unchanged.
	SetCategoryIfEmpty(ctx context.Context, externalID, category string) (*Place, error)
}
