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

func (mdb *MongodbRepo) AddFavorite(ctx context.Context, userID, placeID primitive.ObjectID) (*User, error) {
	filter := bson.M{
		"_id":       userID,
		"favorites": bson.M{"$ne": placeID},
	}
	update := bson.M{
		"$addToSet": bson.M{"favorites": placeID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	return mdb.updateFavorites(ctx, filter, update)
}

func (mdb *MongodbRepo) RemoveFavorite(ctx context.Context, userID, placeID primitive.ObjectID) (*User, error) {
	filter := bson.M{
		"_id":       userID,
		"favorites": placeID,
	}
	update := bson.M{
		"$pull": bson.M{"favorites": placeID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	return mdb.updateFavorites(ctx, filter, update)
}

func (mdb *MongodbRepo) updateFavorites(ctx context.Context, filter, update bson.M) (*User, error) {
	col, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return nil, fmt.Errorf("error getting collection: %w", err)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user User
	if err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error updating favourites: %w", err)
	}
	return &user, nil
}
