package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockMongo(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

// noMatch is the findAndModify reply when the filter selects nothing.
func noMatch() bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil})
}

func matched(doc bson.D) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

func startedCommand(mt *mtest.T, name string) bson.Raw {
	mt.Helper()
	evt := mt.GetStartedEvent()
	require.NotNil(mt, evt, "no %s command was sent", name)
	require.Equal(mt, name, evt.CommandName)
	return evt.Command
}

func firstUpdate(mt *mtest.T, cmd bson.Raw) bson.Raw {
	mt.Helper()
	updates, err := cmd.Lookup("updates").Array().Values()
	require.NoError(mt, err)
	require.Len(mt, updates, 1)
	return updates[0].Document()
}

func TestMongoPushRating(t *testing.T) {
	mt := newMockMongo(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	mt.Run("appends only when the user has no rating", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(matched(bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "external_id", Value: "p1"},
			{Key: "ratings", Value: bson.A{bson.D{{Key: "user_id", Value: userID}, {Key: "score", Value: 4}}}},
		}))

		place, err := repo.PushRating(ctx, "p1", Rating{UserID: userID, Score: 4, UpdatedAt: time.Now()})
		require.NoError(mt, err)
		require.Len(mt, place.Ratings, 1)
		assert.Equal(mt, userID, place.Ratings[0].UserID)

		cmd := startedCommand(mt, "findAndModify")
		assert.Equal(mt, PlacesColName, cmd.Lookup("findAndModify").StringValue())
		assert.True(mt, cmd.Lookup("new").Boolean())

		query := cmd.Lookup("query").Document()
		assert.Equal(mt, "p1", query.Lookup("external_id").StringValue())
		assert.Equal(mt, userID, query.Lookup("ratings.user_id", "$ne").ObjectID())

		update := cmd.Lookup("update").Document()
		assert.Equal(mt, userID, update.Lookup("$push", "ratings", "user_id").ObjectID())
		assert.EqualValues(mt, 4, update.Lookup("$push", "ratings", "score").AsInt64())
	})

	mt.Run("no match means the user already rated", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(noMatch())

		_, err := repo.PushRating(ctx, "p1", Rating{UserID: userID, Score: 2})
		assert.ErrorIs(mt, err, ErrRatingExists)
	})
}

func TestMongoSetRatingScore(t *testing.T) {
	mt := newMockMongo(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()

	mt.Run("updates the matched rating in place", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(matched(bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "external_id", Value: "p1"},
			{Key: "ratings", Value: bson.A{bson.D{{Key: "user_id", Value: userID}, {Key: "score", Value: 5}}}},
		}))

		place, err := repo.SetRatingScore(ctx, "p1", userID, 5, time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, 5, place.Ratings[0].Score)

		cmd := startedCommand(mt, "findAndModify")
		query := cmd.Lookup("query").Document()
		assert.Equal(mt, "p1", query.Lookup("external_id").StringValue())
		assert.Equal(mt, userID, query.Lookup("ratings.user_id").ObjectID())

		set := cmd.Lookup("update", "$set").Document()
		assert.EqualValues(mt, 5, set.Lookup("ratings.$.score").AsInt64())
		_, err = set.LookupErr("ratings.$.updated_at")
		assert.NoError(mt, err)
	})

	mt.Run("no match means the user has no rating yet", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(noMatch())

		_, err := repo.SetRatingScore(ctx, "p1", userID, 3, time.Now())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoInsertPlaceDuplicateKey(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("unique index violation is reported as a lost race", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: citylist.places index: external_id_unique",
		}))

		err := repo.InsertPlace(context.Background(), NewPlace("p1", PlaceDetails{}, "hotel", time.Now()))
		assert.ErrorIs(mt, err, ErrDuplicateKey)
	})
}

func TestMongoFavorites(t *testing.T) {
	mt := newMockMongo(t)
	ctx := context.Background()
	userID := primitive.NewObjectID()
	placeID := primitive.NewObjectID()

	mt.Run("add is conditional on the place being absent", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(matched(bson.D{
			{Key: "_id", Value: userID},
			{Key: "username", Value: "alice"},
			{Key: "favorites", Value: bson.A{placeID}},
		}))

		user, err := repo.AddFavorite(ctx, userID, placeID)
		require.NoError(mt, err)
		assert.Equal(mt, []primitive.ObjectID{placeID}, user.Favorites)

		cmd := startedCommand(mt, "findAndModify")
		assert.Equal(mt, UsersColName, cmd.Lookup("findAndModify").StringValue())
		query := cmd.Lookup("query").Document()
		assert.Equal(mt, userID, query.Lookup("_id").ObjectID())
		assert.Equal(mt, placeID, query.Lookup("favorites", "$ne").ObjectID())
		assert.Equal(mt, placeID, cmd.Lookup("update", "$addToSet", "favorites").ObjectID())
	})

	mt.Run("remove is conditional on the place being present", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(matched(bson.D{
			{Key: "_id", Value: userID},
			{Key: "username", Value: "alice"},
			{Key: "favorites", Value: bson.A{}},
		}))

		user, err := repo.RemoveFavorite(ctx, userID, placeID)
		require.NoError(mt, err)
		assert.Empty(mt, user.Favorites)

		cmd := startedCommand(mt, "findAndModify")
		query := cmd.Lookup("query").Document()
		assert.Equal(mt, placeID, query.Lookup("favorites").ObjectID())
		assert.Equal(mt, placeID, cmd.Lookup("update", "$pull", "favorites").ObjectID())
	})

	mt.Run("a stale toggle matches nothing", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(noMatch(), noMatch())

		_, err := repo.AddFavorite(ctx, userID, placeID)
		assert.ErrorIs(mt, err, ErrNotFound)
		_, err = repo.RemoveFavorite(ctx, userID, placeID)
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestMongoRecountFavorites(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("stores the holder count unless a newer count landed", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		placeID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "citylist.users", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		require.NoError(mt, repo.RecountFavorites(context.Background(), placeID))

		count := startedCommand(mt, "aggregate")
		assert.Equal(mt, UsersColName, count.Lookup("aggregate").StringValue())
		stages, err := count.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		require.NotEmpty(mt, stages)
		assert.Equal(mt, placeID, stages[0].Document().Lookup("$match", "favorites").ObjectID())

		cmd := startedCommand(mt, "update")
		assert.Equal(mt, PlacesColName, cmd.Lookup("update").StringValue())
		upd := firstUpdate(mt, cmd)
		assert.Equal(mt, placeID, upd.Lookup("q", "_id").ObjectID())
		guards, err := upd.Lookup("q", "$or").Array().Values()
		require.NoError(mt, err)
		assert.Len(mt, guards, 2)
		assert.EqualValues(mt, 2, upd.Lookup("u", "$set", "favorite_count").AsInt64())
		assert.Equal(mt, bsontype.DateTime, upd.Lookup("u", "$set", "favorites_counted_at").Type)
	})
}

func TestMongoSetCategoryIfEmpty(t *testing.T) {
	mt := newMockMongo(t)
	ctx := context.Background()

	mt.Run("tags a place stored without a category", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(matched(bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "external_id", Value: "p1"},
			{Key: "category", Value: "hotel"},
		}))

		place, err := repo.SetCategoryIfEmpty(ctx, "p1", "hotel")
		require.NoError(mt, err)
		assert.Equal(mt, "hotel", place.Category)

		cmd := startedCommand(mt, "findAndModify")
		empties, err := cmd.Lookup("query", "category", "$in").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, empties, 2)
		assert.Equal(mt, bsontype.Null, empties[0].Type)
		assert.Equal(mt, "", empties[1].StringValue())
		assert.Equal(mt, "hotel", cmd.Lookup("update", "$set", "category").StringValue())
	})

	mt.Run("an existing category is left alone", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(
			noMatch(),
			mtest.CreateCursorResponse(0, "citylist.places", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "external_id", Value: "p1"},
				{Key: "category", Value: "restaurant"},
			}),
		)

		place, err := repo.SetCategoryIfEmpty(ctx, "p1", "hotel")
		require.NoError(mt, err)
		assert.Equal(mt, "restaurant", place.Category)
	})
}

func TestMongoGetUserByExternalID(t *testing.T) {
	mt := newMockMongo(t)

	mt.Run("looks users up by auth subject", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		userID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "citylist.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: userID},
			{Key: "username", Value: "carol"},
			{Key: "external_id", Value: "sub-1"},
		}))

		user, err := repo.GetUserByExternalID(context.Background(), "sub-1")
		require.NoError(mt, err)
		assert.Equal(mt, userID, user.ID)

		cmd := startedCommand(mt, "find")
		assert.Equal(mt, "sub-1", cmd.Lookup("filter", "external_id").StringValue())
	})

	mt.Run("unknown subject", func(mt *mtest.T) {
		repo := MongodbNewRepo(mt.Client, "citylist")
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "citylist.users", mtest.FirstBatch))

		_, err := repo.GetUserByExternalID(context.Background(), "sub-2")
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
