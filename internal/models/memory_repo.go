package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepo keeps places and users in process. It backs the ledger in tests
// and when STORAGE_DRIVER=memory, with the same conditional-update semantics
// as MongodbRepo.
type MemoryRepo struct {
	mu        sync.Mutex
	places    map[string]*Place
	placeIDs  map[primitive.ObjectID]string
	users     map[primitive.ObjectID]*User
	usernames map[string]primitive.ObjectID
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		places:    map[string]*Place{},
		placeIDs:  map[primitive.ObjectID]string{},
		users:     map[primitive.ObjectID]*User{},
		usernames: map[string]primitive.ObjectID{},
	}
}

func (m *MemoryRepo) GetPlaceByExternalID(_ context.Context, externalID string) (*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePlace(p), nil
}

func (m *MemoryRepo) InsertPlace(_ context.Context, place *Place) error {
	if err := place.BeforeCreate(); err != nil {
		return fmt.Errorf("failed to prepare place for creation: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.places[place.ExternalID]; ok {
		return ErrDuplicateKey
	}
	m.places[place.ExternalID] = clonePlace(place)
	m.placeIDs[place.ID] = place.ExternalID
	return nil
}

func (m *MemoryRepo) SetRatingScore(_ context.Context, externalID string, userID primitive.ObjectID, score int, at time.Time) (*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range p.Ratings {
		if p.Ratings[i].UserID == userID {
			p.Ratings[i].Score = score
			p.Ratings[i].UpdatedAt = at
			p.UpdatedAt = at
			return clonePlace(p), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) PushRating(_ context.Context, externalID string, rating Rating) (*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[externalID]
	if !ok {
		return nil, ErrRatingExists
	}
	if _, exists := p.RatingBy(rating.UserID); exists {
		return nil, ErrRatingExists
	}
	p.Ratings = append(p.Ratings, rating)
	p.UpdatedAt = rating.UpdatedAt
	return clonePlace(p), nil
}

func (m *MemoryRepo) PushComment(_ context.Context, externalID string, comment Comment) (*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Comments = append(p.Comments, comment)
	p.UpdatedAt = comment.CreatedAt
	return clonePlace(p), nil
}

func (m *MemoryRepo) ListPlaces(_ context.Context, filter PlaceFilter) ([]*Place, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*Place, 0)
	for _, p := range m.places {
		if p.Category != filter.Category {
			continue
		}
		if filter.City != "" && p.City != filter.City {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return strings.Compare(matched[i].ExternalID, matched[j].ExternalID) < 0
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	out := make([]*Place, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, clonePlace(p))
	}
	return out, total, nil
}

func (m *MemoryRepo) GetPlacesByIDs(_ context.Context, ids []primitive.ObjectID) ([]*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Place, 0, len(ids))
	for _, id := range ids {
		if ext, ok := m.placeIDs[id]; ok {
			out = append(out, clonePlace(m.places[ext]))
		}
	}
	return out, nil
}

func (m *MemoryRepo) RecountFavorites(_ context.Context, placeID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ext, ok := m.placeIDs[placeID]
	if !ok {
		return nil
	}
	n := 0
	for _, u := range m.users {
		if u.HasFavorite(placeID) {
			n++
		}
	}
	p := m.places[ext]
	p.FavoriteCount = n
	p.FavoritesCountedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) SetCategoryIfEmpty(_ context.Context, externalID, category string) (*Place, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.places[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Category == "" {
		p.Category = category
		p.UpdatedAt = time.Now().UTC()
	}
	return clonePlace(p), nil
}

func (m *MemoryRepo) CreateUser(_ context.Context, user *User) error {
	if err := user.BeforeCreate(); err != nil {
		return fmt.Errorf("failed to prepare user for creation: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[user.Username]; taken {
		return fmt.Errorf("username %q already taken: %w", user.Username, ErrConflict)
	}
	m.users[user.ID] = cloneUser(user)
	m.usernames[user.Username] = user.ID
	return nil
}

func (m *MemoryRepo) GetUserByID(_ context.Context, id primitive.ObjectID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryRepo) GetUserByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usernames[strings.TrimSpace(username)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryRepo) GetUserByExternalID(_ context.Context, subject string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subject == "" {
		return nil, ErrNotFound
	}
	for _, u := range m.users {
		if u.ExternalID == subject {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) AddFavorite(_ context.Context, userID, placeID primitive.ObjectID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.HasFavorite(placeID) {
		return nil, ErrNotFound
	}
	u.Favorites = append(u.Favorites, placeID)
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func (m *MemoryRepo) RemoveFavorite(_ context.Context, userID, placeID primitive.ObjectID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !u.HasFavorite(placeID) {
		return nil, ErrNotFound
	}
	kept := make([]primitive.ObjectID, 0, len(u.Favorites))
	for _, id := range u.Favorites {
		if id != placeID {
			kept = append(kept, id)
		}
	}
	u.Favorites = kept
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func clonePlace(p *Place) *Place {
	c := *p
	c.Ratings = append([]Rating{}, p.Ratings...)
	c.Comments = append([]Comment{}, p.Comments...)
	return &c
}

func cloneUser(u *User) *User {
	c := *u
	c.Favorites = append([]primitive.ObjectID{}, u.Favorites...)
	return &c
}
