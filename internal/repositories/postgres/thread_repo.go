package postgres

import (
	"context"
	"errors"

	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/utils"
	"gorm.io/gorm"
)

type ThreadRepo interface {
	Insert(ctx context.Context, t *models.Thread) error
	GetByID(ctx context.Context, threadID string) (*models.Thread, error)
	List(ctx context.Context, limit int) ([]models.Thread, error)
	// Delete removes the thread and all of its messages in one transaction.
	Delete(ctx context.Context, threadID string) error
}

type threadRepo struct {
	db *gorm.DB
}

func NewThreadRepo(db *gorm.DB) ThreadRepo {
	return &threadRepo{db: db}
}

func (r *threadRepo) Insert(ctx context.Context, t *models.Thread) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *threadRepo) GetByID(ctx context.Context, threadID string) (*models.Thread, error) {
	var t models.Thread
	err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &t, err
}

func (r *threadRepo) List(ctx context.Context, limit int) ([]models.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Thread
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *threadRepo) Delete(ctx context.Context, threadID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", threadID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("thread_id = ?", threadID).Delete(&models.Thread{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return nil
	})
}
