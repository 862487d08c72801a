package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CheckpointRepository interface {
	// Save appends a checkpoint to the thread's linear history and returns
	// its id. ParentID is filled from the current latest checkpoint.
	Save(ctx context.Context, threadID string, state models.CheckpointState) (string, error)
	LoadLatest(ctx context.Context, threadID string) (*models.Checkpoint, error)
	DeleteByThread(ctx context.Context, threadID string) error
}

type checkpointRepo struct {
	col *mongo.Collection
}

func NewCheckpointRepo(db *mongo.Database) CheckpointRepository {
	return &checkpointRepo{col: db.Collection("checkpoints")}
}

func (r *checkpointRepo) Save(ctx context.Context, threadID string, state models.CheckpointState) (string, error) {
	parentID := ""
	if latest, err := r.LoadLatest(ctx, threadID); err == nil {
		parentID = latest.CheckpointID
	} else if !errors.Is(err, utils.ErrNotFound) {
		return "", err
	}

	cp := models.Checkpoint{
		ThreadID:     threadID,
		CheckpointID: uuid.NewString(),
		ParentID:     parentID,
		State:        state,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.col.InsertOne(ctx, cp); err != nil {
		return "", err
	}
	return cp.CheckpointID, nil
}

func (r *checkpointRepo) LoadLatest(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	err := r.col.FindOne(ctx,
		bson.M{"thread_id": threadID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&cp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &cp, err
}

func (r *checkpointRepo) DeleteByThread(ctx context.Context, threadID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"thread_id": threadID})
	return err
}
