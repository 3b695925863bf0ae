package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (mdb *MongodbRepo) GetPlaceByExternalID(ctx context.Context, externalID string) (*Place, error) {
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	var place Place
	err = col.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&place)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding place %q: %w", externalID, err)
	}
	return &place, nil
}

func (mdb *MongodbRepo) InsertPlace(ctx context.Context, place *Place) error {
	if err := place.BeforeCreate(); err != nil {
		return fmt.Errorf("failed to prepare place for creation: %w", err)
	}
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	if _, err := col.InsertOne(ctx, place); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("error inserting place: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) SetRatingScore(ctx context.Context, externalID string, userID primitive.ObjectID, score int, at time.Time) (*Place, error) {
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	filter := bson.M{
		"external_id":     externalID,
		"ratings.user_id": userID,
	}
	update := bson.M{
		"$set": bson.M{
			"ratings.$.score":      score,
			"ratings.$.updated_at": at,
			"updated_at":           at,
		},
	}
	return findOneAndUpdatePlace(ctx, col, filter, update, ErrNotFound)
}

func (mdb *MongodbRepo) PushRating(ctx context.Context, externalID string, rating Rating) (*Place, error) {
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	// The $ne guard makes the append conditional on the user having no rating yet.
	filter := bson.M{
		"external_id":     externalID,
		"ratings.user_id": bson.M{"$ne": rating.UserID},
	}
	update := bson.M{
		"$push": bson.M{"ratings": rating},
		"$set":  bson.M{"updated_at": rating.UpdatedAt},
	}
	return findOneAndUpdatePlace(ctx, col, filter, update, ErrRatingExists)
}

func (mdb *MongodbRepo) PushComment(ctx context.Context, externalID string, comment Comment) (*Place, error) {
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updated_at": comment.CreatedAt},
	}
	return findOneAndUpdatePlace(ctx, col, bson.M{"external_id": externalID}, update, ErrNotFound)
}

func findOneAndUpdatePlace(ctx context.Context, col *mongo.Collection, filter, update bson.M, noMatch error) (*Place, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var place Place
	err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&place)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, noMatch
		}
		return nil, fmt.Errorf("error updating place: %w", err)
	}
	return &place, nil
}

func (mdb *MongodbRepo) ListPlaces(ctx context.Context, filter PlaceFilter) ([]*Place, int, error) {
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting collection: %w", err)
	}

	query := bson.M{"category": filter.Category}
	if filter.City != "" {
		query["city"] = filter.City
	}

	total, err := col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting places: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "external_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("error finding places: %w", err)
	}
	defer cursor.Close(ctx)

	places := make([]*Place, 0)
	if err := cursor.All(ctx, &places); err != nil {
		return nil, 0, fmt.Errorf("error decoding places: %w", err)
	}

	return places, int(total), nil
}

// GetPlacesByIDs returns the places in the order of ids, skipping ids that no longer resolve.
func (mdb *MongodbRepo) GetPlacesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Place, error) {
	if len(ids) == 0 {
		return []*Place{}, nil
	}
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	cursor, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("error finding places: %w", err)
	}
	defer cursor.Close(ctx)

	byID := make(map[primitive.ObjectID]*Place, len(ids))
	for cursor.Next(ctx) {
		var place Place
		if err := cursor.Decode(&place); err != nil {
			return nil, fmt.Errorf("error decoding place: %w", err)
		}
		byID[place.ID] = &place
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	places := make([]*Place, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			places = append(places, p)
		}
	}
	return places, nil
}

// RecountFavorites counts the users holding the place and stores the result.
// Each write carries the time its count began and only replaces an older
// count, so interleaved toggles settle on the latest count.
func (mdb *MongodbRepo) RecountFavorites(ctx context.Context, placeID primitive.ObjectID) error {
	users, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}
	places, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	// stored dates keep millisecond precision
	startedAt := time.Now().UTC().Truncate(time.Millisecond)
	n, err := users.CountDocuments(ctx, bson.M{"favorites": placeID})
	if err != nil {
		return fmt.Errorf("error counting favourites: %w", err)
	}

	filter := bson.M{
		"_id": placeID,
		"$or": bson.A{
			bson.M{"favorites_counted_at": bson.M{"$exists": false}},
			bson.M{"favorites_counted_at": bson.M{"$lt": startedAt}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"favorite_count":       n,
			"favorites_counted_at": startedAt,
		},
	}
	if _, err := places.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("error updating favorite count: %w", err)
	}
	return nil
}

func (mdb *MongodbRepo) SetCategoryIfEmpty(ctx context.Context, externalID, category string) (*Place, error) {
	col, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	// null also matches places stored without the field
	filter := bson.M{
		"external_id": externalID,
		"category":    bson.M{"$in": bson.A{nil, ""}},
	}
	update := bson.M{
		"$set": bson.M{
			"category":   category,
			"updated_at": time.Now().UTC(),
		},
	}
	place, err := findOneAndUpdatePlace(ctx, col, filter, update, ErrNotFound)
	if errors.Is(err, ErrNotFound) {
		return mdb.GetPlaceByExternalID(ctx, externalID)
	}
	return place, err
}
