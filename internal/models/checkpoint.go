package models

import "time"

// PromptMessage is one entry of the orchestration state as seen by the LLM.
// It is deliberately distinct from Message: the checkpoint log and the
// message history evolve independently.
type PromptMessage struct {
	Role    string `bson:"role" json:"role"`
	Content string `bson:"content" json:"content"`
}

// CheckpointState is the serialized orchestration state for one thread.
// The latest checkpoint reconstructs the LLM-visible context without
// replaying the full message store. Summary is reserved for a future
// compaction step and currently always empty.
type CheckpointState struct {
	VideoIDs []string        `bson:"video_ids" json:"video_ids"`
	Messages []PromptMessage `bson:"messages" json:"messages"`
	LastSeq  int             `bson:"last_seq" json:"last_seq"`
	Summary  string          `bson:"summary,omitempty" json:"summary,omitempty"`
}

// Checkpoint is one entry of a thread's linear checkpoint history.
type Checkpoint struct {
	ThreadID     string          `bson:"thread_id"`
	CheckpointID string          `bson:"checkpoint_id"`
	ParentID     string          `bson:"parent_id,omitempty"`
	State        CheckpointState `bson:"state"`
	CreatedAt    time.Time       `bson:"created_at"`
}
