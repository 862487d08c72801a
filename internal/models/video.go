package models

import "time"

// Video is a shared, append-only knowledge base entry for one ingested video.
// The transcript is immutable once Ready is set; rows with Ready == false are
// leftovers of failed ingests and are invisible to idempotency checks.
type Video struct {
	VideoID         string    `gorm:"column:video_id;type:text;primaryKey" json:"video_id"`
	URL             string    `gorm:"column:url;type:text" json:"url"`
	Title           string    `gorm:"column:title;type:text" json:"title"`
	AuthorName      *string   `gorm:"column:author_name;type:text" json:"author_name,omitempty"`
	ThumbnailURL    *string   `gorm:"column:thumbnail_url;type:text" json:"thumbnail_url,omitempty"`
	Transcript      string    `gorm:"column:transcript;type:text" json:"-"`
	DurationSeconds *int      `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	Summary         string    `gorm:"column:summary;type:text" json:"summary"`
	EmbeddingModel  string    `gorm:"column:embedding_model;type:text" json:"embedding_model"`
	Ready           bool      `gorm:"column:ready" json:"ready"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Video) TableName() string { return "videos" }
