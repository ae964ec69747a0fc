package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ReadingStatus string

const (
	ReadingStatusPending      ReadingStatus = "pending"
	ReadingStatusCardSelected ReadingStatus = "card_selected"
	ReadingStatusCompleted    ReadingStatus = "completed"
	ReadingStatusError        ReadingStatus = "error"
)

type SpreadType string

const (
	SpreadThreeCard   SpreadType = "three_card"
	SpreadCelticCross SpreadType = "celtic_cross"
	// Recognized by question analysis as a recommendation only; dealing it
	// fails because no position list is defined.
	SpreadWorkCycle SpreadType = "work_cycle"
)

// Reading is the aggregate root of one pipeline run. The orchestrator is its
// only writer for the lifetime of the run.
type Reading struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Question   string        `gorm:"column:question;type:text;not null" json:"question"`
	SpreadType SpreadType    `gorm:"column:spread_type" json:"spread_type"`
	UserID     *uuid.UUID    `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	Status     ReadingStatus `gorm:"column:status;not null;default:pending" json:"status"`
	SourcePage string        `gorm:"column:source_page" json:"source_page,omitempty"`

	QuestionDomain     string `gorm:"column:question_domain" json:"question_domain,omitempty"`
	QuestionComplexity string `gorm:"column:question_complexity" json:"question_complexity,omitempty"`
	QuestionSummary    string `gorm:"column:question_summary;type:text" json:"question_summary,omitempty"`
	AutoSelectedSpread bool   `gorm:"column:auto_selected_spread" json:"auto_selected_spread"`
	SpreadReason       string `gorm:"column:spread_reason;type:text" json:"spread_reason,omitempty"`

	SignificatorCardID          *uuid.UUID `gorm:"type:uuid;column:significator_card_id" json:"significator_card_id,omitempty"`
	SignificatorSelectionReason string     `gorm:"column:significator_selection_reason;type:text" json:"significator_selection_reason,omitempty"`

	SpreadPatternAnalysis  datatypes.JSON `gorm:"type:jsonb;column:spread_pattern_analysis" json:"spread_pattern_analysis,omitempty"`
	CurrentStep            string         `gorm:"column:current_step" json:"current_step,omitempty"`
	ImageryDescription     string         `gorm:"column:imagery_description;type:text" json:"imagery_description,omitempty"`
	Interpretation         string         `gorm:"column:interpretation;type:text" json:"interpretation,omitempty"`
	InterpretationFullText string         `gorm:"column:interpretation_full_text;type:text" json:"interpretation_full_text,omitempty"`
	InterpretationSummary  string         `gorm:"column:interpretation_summary;type:text" json:"interpretation_summary,omitempty"`
	InterpretationMetadata datatypes.JSON `gorm:"type:jsonb;column:interpretation_metadata" json:"interpretation_metadata,omitempty"`

	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
	QuestionAnalyzedAt *time.Time `gorm:"column:question_analyzed_at" json:"question_analyzed_at,omitempty"`
	CardsSelectedAt    *time.Time `gorm:"column:cards_selected_at" json:"cards_selected_at,omitempty"`
	PatternAnalyzedAt  *time.Time `gorm:"column:pattern_analyzed_at" json:"pattern_analyzed_at,omitempty"`
	RagRetrievedAt     *time.Time `gorm:"column:rag_retrieved_at" json:"rag_retrieved_at,omitempty"`
	ImageryGeneratedAt *time.Time `gorm:"column:imagery_generated_at" json:"imagery_generated_at,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Reading) TableName() string {
	return "readings"
}
