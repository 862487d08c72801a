package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checkpoints := db.Collection("checkpoints")
	_, err := checkpoints.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// Latest-checkpoint lookup walks this index backwards.
		{
			Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_thread_created"),
		},
		{
			Keys: bson.D{{Key: "thread_id", Value: 1}, {Key: "checkpoint_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_thread_checkpoint").
				SetUnique(true),
		},
	})
	return err
}
