package postgres

import (
	"context"
	"time"

	"github.com/yooventa/tubetalk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepo interface {
	// Append assigns the next sequence number for the thread and inserts the
	// message in the same transaction. The assigned seq is written back into
	// msg.Seq.
	Append(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, threadID string) ([]models.Message, error)
	LastSeq(ctx context.Context, threadID string) (int, error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

func (r *messageRepo) Append(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock the thread row so concurrent appends serialize on seq
		var t models.Thread
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("thread_id = ?", msg.ThreadID).
			Take(&t).Error; err != nil {
			return err
		}
		var next *int
		if err := tx.Model(&models.Message{}).
			Where("thread_id = ?", msg.ThreadID).
			Select("MAX(seq) + 1").
			Scan(&next).Error; err != nil {
			return err
		}
		if next == nil {
			msg.Seq = 0
		} else {
			msg.Seq = *next
		}
		return tx.Create(msg).Error
	})
}

func (r *messageRepo) List(ctx context.Context, threadID string) ([]models.Message, error) {
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&rows).Error
	return rows, err
}

func (r *messageRepo) LastSeq(ctx context.Context, threadID string) (int, error) {
	var last *int
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("thread_id = ?", threadID).
		Select("MAX(seq)").
		Scan(&last).Error
	if err != nil || last == nil {
		return -1, err
	}
	return *last, nil
}
