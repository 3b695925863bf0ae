// Package lookup resolves external place identifiers to descriptive fields.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshua-takyi/citylist/internal/models"
)

var (
	// ErrNotFound is returned when the provider has no record of the identifier.
	ErrNotFound = errors.New("place not found at provider")
	// ErrProvider matches every *ProviderError via errors.Is.
	ErrProvider = errors.New("place provider unavailable")
)

// ProviderError wraps transport failures, timeouts, bad status codes and
// undecodable responses.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Provider is the contract the ledger consumes.
type Provider interface {
	Lookup(ctx context.Context, externalID string) (*models.PlaceDetails, error)
}

// Circle bounds a search area.
type Circle struct {
	Lat     float64
	Lon     float64
	RadiusM int
}

// Summary is a search hit.
type Summary struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
}

type Searcher interface {
	Search(ctx context.Context, category string, area Circle, limit int) ([]Summary, error)
}
