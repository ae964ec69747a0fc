package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReadingProcessData is one audit row per pipeline stage. Writes are
// best-effort: a failed insert is logged and the pipeline continues.
type ReadingProcessData struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReadingID        uuid.UUID      `gorm:"type:uuid;column:reading_id;not null;index" json:"reading_id"`
	StepName         string         `gorm:"column:step_name;not null" json:"step_name"`
	StepOrder        int            `gorm:"column:step_order;not null" json:"step_order"`
	InputData        datatypes.JSON `gorm:"type:jsonb;column:input_data" json:"input_data,omitempty"`
	OutputData       datatypes.JSON `gorm:"type:jsonb;column:output_data" json:"output_data,omitempty"`
	PromptType       string         `gorm:"column:prompt_type" json:"prompt_type,omitempty"`
	PromptContent    string         `gorm:"column:prompt_content;type:text" json:"prompt_content,omitempty"`
	RagQueries       datatypes.JSON `gorm:"type:jsonb;column:rag_queries" json:"rag_queries,omitempty"`
	ModelUsed        string         `gorm:"column:model_used" json:"model_used,omitempty"`
	Temperature      *float64       `gorm:"column:temperature" json:"temperature,omitempty"`
	ProcessingTimeMS int64          `gorm:"column:processing_time_ms" json:"processing_time_ms"`
	TokensUsed       *int           `gorm:"column:tokens_used" json:"tokens_used,omitempty"`
	ErrorMessage     string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	ErrorTraceback   string         `gorm:"column:error_traceback;type:text" json:"error_traceback,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ReadingProcessData) TableName() string {
	return "reading_process_data"
}
