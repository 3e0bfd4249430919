package sessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository persists revoked token keys
type Repository interface {
	Add(ctx context.Context, r *Revocation) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MongoRepository implements Repository using a Mongo collection.
// Documents are removed by a TTL index on expiresAt.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

// EnsureIndexes creates the TTL index on expiresAt.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("expiresAt_ttl"),
	})
	return err
}

func (r *MongoRepository) Add(ctx context.Context, rev *Revocation) error {
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, rev)
	if mongo.IsDuplicateKeyError(err) {
		// already revoked
		return nil
	}
	return err
}

// Exists also checks expiresAt since the TTL monitor only runs once a minute.
func (r *MongoRepository) Exists(ctx context.Context, key string) (bool, error) {
	var rev Revocation
	err := r.col.FindOne(ctx, bson.M{"_id": key}).Decode(&rev)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	return time.Now().UTC().Before(rev.ExpiresAt), nil
}
