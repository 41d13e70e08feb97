package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopify-collector-app/internal/domain"
	"shopify-collector-app/internal/infrastructure/repository/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoShopRepository persists shop records in the "shops" collection, one
// document per shop keyed by shop_domain.
type MongoShopRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoShopRepository creates a repository backed by the given database.
func NewMongoShopRepository(client *mongo.Client, db string) *MongoShopRepository {
	return &MongoShopRepository{
		client:     client,
		collection: client.Database(db).Collection("shops"),
	}
}

// EnsureIndexes creates the unique index on shop_domain.
func (r *MongoShopRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "shop_domain", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create shop_domain index: %w", err)
	}
	return nil
}

// Get returns the record for a shop, or nil when none is stored.
func (r *MongoShopRepository) Get(ctx context.Context, shopDomain string) (*domain.ShopRecord, error) {
	var doc entity.MongoShopDoc
	err := r.collection.FindOne(ctx, bson.M{"shop_domain": shopDomain}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find shop %s: %w", shopDomain, err)
	}
	return doc.ToDomain(), nil
}

// Insert stores a new shop record, stamping the timestamps.
func (r *MongoShopRepository) Insert(ctx context.Context, record *domain.ShopRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, entity.MongoShopDocFromDomain(record)); err != nil {
		return fmt.Errorf("failed to insert shop %s: %w", record.ShopDomain, err)
	}
	return nil
}

// Update applies mutate to the stored record and writes it back. The record's
// UpdatedAt is refreshed; mutate never sees a nil record.
func (r *MongoShopRepository) Update(ctx context.Context, shopDomain string, mutate func(*domain.ShopRecord)) error {
	var doc entity.MongoShopDoc
	err := r.collection.FindOne(ctx, bson.M{"shop_domain": shopDomain}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("shop not found: %s", shopDomain)
	}
	if err != nil {
		return fmt.Errorf("failed to find shop %s for update: %w", shopDomain, err)
	}

	record := doc.ToDomain()
	mutate(record)
	record.UpdatedAt = time.Now()

	_, err = r.collection.ReplaceOne(ctx, bson.M{"shop_domain": shopDomain}, entity.MongoShopDocFromDomain(record))
	if err != nil {
		return fmt.Errorf("failed to update shop %s: %w", shopDomain, err)
	}
	return nil
}

// Delete removes the record for a shop. Deleting an absent shop is not an
// error.
func (r *MongoShopRepository) Delete(ctx context.Context, shopDomain string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"shop_domain": shopDomain}); err != nil {
		return fmt.Errorf("failed to delete shop %s: %w", shopDomain, err)
	}
	return nil
}

// Ping verifies the database connection.
func (r *MongoShopRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
