package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-telemetry/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoVehicleStore keeps the vehicle registry in a MongoDB collection.
// Vehicle IDs are stored as the document _id.
type MongoVehicleStore struct {
	Collection *mongo.Collection
}

var errNilCollection = errors.New("mongo collection is nil")

// Exists reports whether a vehicle document with the given ID exists.
func (c *MongoVehicleStore) Exists(ctx context.Context, id string) (bool, error) {
	if c.Collection == nil {
		return false, errNilCollection
	}
	n, err := c.Collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count vehicles: %w", err)
	}
	return n > 0, nil
}

// AllVehicleIDs returns every registered vehicle ID.
func (c *MongoVehicleStore) AllVehicleIDs(ctx context.Context) ([]string, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.M{"_id": 1})
	cursor, err := c.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find vehicle ids: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode vehicle ids: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// InsertVehicle inserts a vehicle record into the collection.
func (c *MongoVehicleStore) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (models.Vehicle, error) {
	if c.Collection == nil {
		return models.Vehicle{}, errNilCollection
	}
	if vehicle.ID == "" {
		vehicle.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now

	if _, err := c.Collection.InsertOne(ctx, vehicle); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Vehicle{}, ErrVehicleExists
		}
		return models.Vehicle{}, err
	}
	return vehicle, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleStore) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	var vehicle models.Vehicle
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// FindVehicles lists all vehicles ordered by ID.
func (c *MongoVehicleStore) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	cursor, err := c.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	vehicles := []models.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// UpdateVehicle applies a typed update and returns the new document.
func (c *MongoVehicleStore) UpdateVehicle(ctx context.Context, id string, update models.VehicleUpdate) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, errNilCollection
	}
	set := bson.M(update.Set())
	set["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var vehicle models.Vehicle
	err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&vehicle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// DeleteVehicle deletes a vehicle by its ID.
func (c *MongoVehicleStore) DeleteVehicle(ctx context.Context, id string) error {
	if c.Collection == nil {
		return errNilCollection
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrVehicleNotFound
	}
	return nil
}
