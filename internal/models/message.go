package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is one append-only history entry. Seq is assigned transactionally
// per thread starting at 0; the store never enforces strict human/ai
// alternation (an ai message may carry an error flag instead of content).
type Message struct {
	ThreadID  string         `gorm:"column:thread_id;type:uuid;primaryKey" json:"thread_id"`
	Seq       int            `gorm:"column:seq;primaryKey" json:"message_id"`
	Role      string         `gorm:"column:role;type:text" json:"role"`
	Content   string         `gorm:"column:content;type:text" json:"content"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// Citation points an assistant answer back at a retrieved fragment.
type Citation struct {
	VideoID    string  `json:"video_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// MessageMetadata is the structured metadata stored on ai messages.
type MessageMetadata struct {
	Citations   []Citation `json:"citations,omitempty"`
	Error       bool       `json:"error,omitempty"`
	Interrupted bool       `json:"interrupted,omitempty"`
}
