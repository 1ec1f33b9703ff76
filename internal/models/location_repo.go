package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joshua-takyi/eventradar/internal/geo"
)

const (
	DefaultMongoDB           = "eventradar"
	ViewerLocationsColName   = "viewer_locations"
	viewerLocationsKeyIdx    = "viewer_key_unique"
	viewerLocationsExpiryIdx = "expires_at_ttl"
)

// ViewerLocation is the last resolved position for a viewer session. Mongo
// drops the document once expires_at passes.
type ViewerLocation struct {
	ViewerKey string    `bson:"viewer_key"`
	Lat       float64   `bson:"lat"`
	Lng       float64   `bson:"lng"`
	Source    string    `bson:"source"`
	UpdatedAt time.Time `bson:"updated_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (mdb *MongodbRepo) GetCollection(ctx context.Context, colName string) (*mongo.Collection, error) {
	if mdb.mongodbClient == nil {
		return nil, fmt.Errorf("mongodb client is not initialized")
	}
	return mdb.mongodbClient.Database(mdb.dbName).Collection(colName), nil
}

// EnsureIndexes creates the TTL index and the unique viewer key.
func (mdb *MongodbRepo) EnsureIndexes(ctx context.Context) error {
	col, err := mdb.GetCollection(ctx, ViewerLocationsColName)
	if err != nil {
		return fmt.Errorf("error getting collection: %w", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetExpireAfterSeconds(0).
				SetName(viewerLocationsExpiryIdx),
		},
		{
			Keys: bson.D{{Key: "viewer_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(viewerLocationsKeyIdx),
		},
	}

	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("error creating indexes: %w", err)
	}
	return nil
}

// GetLocation implements geo.Store. The TTL monitor runs about once a
// minute, so expiry is also checked here.
func (mdb *MongodbRepo) GetLocation(ctx context.Context, viewerKey string) (*geo.StoredLocation, error) {
	col, err := mdb.GetCollection(ctx, ViewerLocationsColName)
	if err != nil {
		return nil, err
	}

	var doc ViewerLocation
	err = col.FindOne(ctx, bson.M{
		"viewer_key": viewerKey,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, &TransientIOError{Op: "find viewer location", Err: err}
	}

	return &geo.StoredLocation{
		Result: geo.Result{
			Coordinate: geo.Coordinate{Lat: doc.Lat, Lng: doc.Lng},
			Source:     geo.Source(doc.Source),
		},
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

// SaveLocation implements geo.Store with an upsert on the viewer key.
func (mdb *MongodbRepo) SaveLocation(ctx context.Context, viewerKey string, loc geo.Result, expiresAt time.Time) error {
	col, err := mdb.GetCollection(ctx, ViewerLocationsColName)
	if err != nil {
		return err
	}

	update := bson.M{"$set": ViewerLocation{
		ViewerKey: viewerKey,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Source:    string(loc.Source),
		UpdatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}}
	_, err = col.UpdateOne(ctx, bson.M{"viewer_key": viewerKey}, update, options.Update().SetUpsert(true))
	if err != nil {
		// two sessions racing on the first upsert; the other write won
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return &TransientIOError{Op: "upsert viewer location", Err: err}
	}
	return nil
}
