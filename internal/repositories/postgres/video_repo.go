package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/utils"
	"gorm.io/gorm"
)

type VideoRepo interface {
	GetByID(ctx context.Context, videoID string) (*models.Video, error)
	// GetReady returns the video only when its index is complete.
	GetReady(ctx context.Context, videoID string) (*models.Video, error)
	UpdateSummary(ctx context.Context, videoID, summary string) error
	Delete(ctx context.Context, videoID string) error
}

type videoRepo struct {
	db *gorm.DB
}

func NewVideoRepo(db *gorm.DB) VideoRepo {
	return &videoRepo{db: db}
}

func (r *videoRepo) GetByID(ctx context.Context, videoID string) (*models.Video, error) {
	var v models.Video
	err := r.db.WithContext(ctx).Where("video_id = ?", videoID).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &v, err
}

func (r *videoRepo) GetReady(ctx context.Context, videoID string) (*models.Video, error) {
	var v models.Video
	err := r.db.WithContext(ctx).Where("video_id = ? AND ready", videoID).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &v, err
}

func (r *videoRepo) UpdateSummary(ctx context.Context, videoID, summary string) error {
	return r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("video_id = ?", videoID).
		Updates(map[string]any{"summary": summary, "updated_at": time.Now().UTC()}).Error
}

func (r *videoRepo) Delete(ctx context.Context, videoID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("video_id = ?", videoID).Delete(&models.TranscriptFragment{}).Error; err != nil {
			return err
		}
		return tx.Where("video_id = ?", videoID).Delete(&models.Video{}).Error
	})
}
