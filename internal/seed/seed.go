// Package seed ingests places from the search API into the ledger.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joshua-takyi/citylist/internal/lookup"
	"github.com/joshua-takyi/citylist/internal/models"
	"gopkg.in/yaml.v3"
)

type City struct {
	Name    string  `yaml:"name"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	RadiusM int     `yaml:"radius_m"`
}

// Category maps the tag stored on a place to the search API's category.
type Category struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
}

type File struct {
	Limit      int        `yaml:"limit"`
	Cities     []City     `yaml:"cities"`
	Categories []Category `yaml:"categories"`
}

func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("seed file lists no cities")
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("seed file lists no categories")
	}
	for i, c := range f.Cities {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("city %d has no name", i)
		}
		if c.RadiusM <= 0 {
			f.Cities[i].RadiusM = 5000
		}
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Provider) == "" {
			return nil, fmt.Errorf("category %d needs both name and provider", i)
		}
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return &f, nil
}

// Ingester is the part of the ledger seeding needs.
type Ingester interface {
	FindOrCreate(ctx context.Context, externalID, categoryHint string) (*models.Place, error)
}

type Stats struct {
	Found    int
	Ingested int
	Failed   int
}

// Run searches every city/category pair and ingests each hit. Places that
// already exist are left untouched, so running it twice is harmless.
func Run(ctx context.Context, f *File, searcher lookup.Searcher, ledger Ingester, dryRun bool, logger *slog.Logger) (Stats, error) {
	var stats Stats
	for _, city := range f.Cities {
		area := lookup.Circle{Lat: city.Lat, Lon: city.Lon, RadiusM: city.RadiusM}
		for _, cat := range f.Categories {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			hits, err := searcher.Search(ctx, cat.Provider, area, f.Limit)
			if err != nil {
				logger.Error("Search failed", "city", city.Name, "category", cat.Name, "error", err)
				stats.Failed++
				continue
			}
			stats.Found += len(hits)

			for _, hit := range hits {
				if dryRun {
					logger.Info("Would ingest place",
						"city", city.Name,
						"category", cat.Name,
						"external_id", hit.ExternalID,
						"name", hit.Name,
					)
					continue
				}
				if _, err := ledger.FindOrCreate(ctx, hit.ExternalID, cat.Name); err != nil {
					logger.Error("Failed to ingest place", "external_id", hit.ExternalID, "error", err)
					stats.Failed++
					continue
				}
				stats.Ingested++
			}
		}
	}
	return stats, nil
}
