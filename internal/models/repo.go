package models

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Validate = newValidator()

// newValidator reports fields by their json name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type SupabaseRepo struct {
	supabaseClient *supabase.Client
}

func SupabaseNewRepo(supabaseClient *supabase.Client) *SupabaseRepo {
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
	}
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the unique indexes the ledger relies on for race detection.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	places, err := mdb.GetCollection(ctx, PlacesColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	placeIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("external_id_unique"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "external_id", Value: 1},
			},
			Options: options.Index().SetName("category_external_id_idx"),
		},
		{
			Keys: bson.D{
				{Key: "city", Value: 1},
				{Key: "category", Value: 1},
			},
			Options: options.Index().SetName("city_category_idx"),
		},
	}
	if _, err := places.Indexes().CreateMany(ctx, placeIndexes); err != nil {
		return fmt.Errorf("error creating place indexes: %w", err)
	}

	users, err := mdb.GetCollection(ctx, UsersColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	userIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("username_unique"),
		},
		{
			Keys: bson.D{{Key: "external_id", Value: 1}},
			Options: options.Index().
				SetSparse(true).
				SetName("external_id_idx"),
		},
	}
	if _, err := users.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("error creating user indexes: %w", err)
	}

	return nil
}
