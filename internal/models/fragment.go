package models

import (
	"github.com/pgvector/pgvector-go"
)

// TranscriptFragment is one retrieval unit of a video transcript.
// Fragments are written during ingestion and never mutated; they are removed
// only when the owning video's index is dropped.
type TranscriptFragment struct {
	VideoID      string          `gorm:"column:video_id;type:text;primaryKey" json:"video_id"`
	ChunkIndex   int             `gorm:"column:chunk_index;primaryKey" json:"chunk_index"`
	Content      string          `gorm:"column:content;type:text" json:"content"`
	StartOffset  int             `gorm:"column:start_offset" json:"start_offset"`
	EndOffset    int             `gorm:"column:end_offset" json:"end_offset"`
	StartSeconds *int            `gorm:"column:start_seconds" json:"start_seconds,omitempty"`
	EndSeconds   *int            `gorm:"column:end_seconds" json:"end_seconds,omitempty"`
	Embedding    pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
}

func (TranscriptFragment) TableName() string { return "transcript_fragments" }
