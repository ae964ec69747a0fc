package types

import (
	"time"

	"gorm.io/datatypes"
)

// RagChunk is one indexed slice of a corpus document. ChunkID follows
// "<doc_base>#<ordinal>" for chunker output and is the upsert key.
type RagChunk struct {
	ChunkID   string         `gorm:"column:chunk_id;primaryKey" json:"chunk_id"`
	Source    string         `gorm:"column:source;not null;index" json:"source"`
	Text      string         `gorm:"column:text;type:text;not null" json:"text"`
	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"embedding,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (RagChunk) TableName() string {
	return "rag_chunks"
}
