package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/yooventa/tubetalk/internal/models"
	"gorm.io/gorm"
)

// ScoredFragment is a fragment with its cosine similarity against a query
// vector, as computed by the index.
type ScoredFragment struct {
	models.TranscriptFragment
	Score float64 `gorm:"column:score"`
}

type FragmentRepo interface {
	// InsertVideoWithFragments writes the video row and its full fragment set
	// in one transaction. The video becomes visible (ready) only when every
	// fragment committed.
	InsertVideoWithFragments(ctx context.Context, video *models.Video, frags []models.TranscriptFragment) error
	// Search returns up to limit fragments from the given videos ordered by
	// similarity to the query vector, most similar first.
	Search(ctx context.Context, query pgvector.Vector, videoIDs []string, limit int) ([]ScoredFragment, error)
	CountByVideo(ctx context.Context, videoID string) (int64, error)
}

type fragmentRepo struct {
	db *gorm.DB
}

func NewFragmentRepo(db *gorm.DB) FragmentRepo {
	return &fragmentRepo{db: db}
}

func (r *fragmentRepo) InsertVideoWithFragments(ctx context.Context, video *models.Video, frags []models.TranscriptFragment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// leftovers of an aborted ingest are replaced wholesale; a ready video
		// never reaches this path (idempotency is checked one level up)
		if err := tx.Where("video_id = ?", video.VideoID).Delete(&models.TranscriptFragment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("video_id = ? AND NOT ready", video.VideoID).Delete(&models.Video{}).Error; err != nil {
			return err
		}
		if err := tx.Create(video).Error; err != nil {
			return err
		}
		if len(frags) == 0 {
			return nil
		}
		return tx.CreateInBatches(frags, 200).Error
	})
}

// Ties at the LIMIT boundary are resolved by video_id then chunk_index so
// equal-distance fragments always survive the cut in the same order.
const searchSQL = `
	SELECT *, 1 - (embedding <=> ?) AS score
	FROM transcript_fragments
	WHERE video_id IN ?
	ORDER BY embedding <=> ?, video_id, chunk_index
	LIMIT ?`

func (r *fragmentRepo) Search(ctx context.Context, query pgvector.Vector, videoIDs []string, limit int) ([]ScoredFragment, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []ScoredFragment
	err := r.db.WithContext(ctx).Raw(searchSQL, query, videoIDs, query, limit).Scan(&rows).Error
	return rows, err
}

func (r *fragmentRepo) CountByVideo(ctx context.Context, videoID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.TranscriptFragment{}).
		Where("video_id = ?", videoID).
		Count(&n).Error
	return n, err
}
