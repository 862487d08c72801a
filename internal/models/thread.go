package models

import (
	"time"

	"github.com/lib/pq"
)

// Thread is one conversation. It references at least one ready video and
// exclusively owns its messages and checkpoints (cascade on delete).
type Thread struct {
	ThreadID  string         `gorm:"column:thread_id;type:uuid;primaryKey" json:"thread_id"`
	VideoIDs  pq.StringArray `gorm:"column:video_ids;type:text[]" json:"video_ids"`
	Title     string         `gorm:"column:title;type:text" json:"title"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Thread) TableName() string { return "threads" }
