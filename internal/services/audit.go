package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

// StepRecord is the loosely typed audit payload a pipeline stage hands to the
// audit service; marshal failures degrade to nil JSON rather than dropping
// the row.
type StepRecord struct {
	StepName      string
	StepOrder     int
	Input         any
	Output        any
	PromptType    string
	PromptContent string
	RagQueries    any
	ModelUsed     string
	Temperature   *float64
	StartedAt     time.Time
	TokensUsed    *int
	Err           error
}

// AuditService persists one row per pipeline stage. Writes are best-effort:
// an insert failure is logged and swallowed so auditing can never fail a
// reading.
type AuditService interface {
	Record(ctx context.Context, readingID uuid.UUID, rec StepRecord)
	History(ctx context.Context, readingID uuid.UUID) ([]*types.ReadingProcessData, error)
}

type auditService struct {
	log  *logger.Logger
	rows repos.ReadingProcessDataRepo
}

func NewAuditService(rowRepo repos.ReadingProcessDataRepo, log *logger.Logger) AuditService {
	return &auditService{log: log.With("service", "AuditService"), rows: rowRepo}
}

func (s *auditService) Record(ctx context.Context, readingID uuid.UUID, rec StepRecord) {
	row := &types.ReadingProcessData{
		ReadingID:     readingID,
		StepName:      rec.StepName,
		StepOrder:     rec.StepOrder,
		InputData:     toJSON(rec.Input),
		OutputData:    toJSON(rec.Output),
		PromptType:    rec.PromptType,
		PromptContent: rec.PromptContent,
		RagQueries:    toJSON(rec.RagQueries),
		ModelUsed:     rec.ModelUsed,
		Temperature:   rec.Temperature,
		TokensUsed:    rec.TokensUsed,
	}
	if !rec.StartedAt.IsZero() {
		row.ProcessingTimeMS = time.Since(rec.StartedAt).Milliseconds()
	}
	if rec.Err != nil {
		row.ErrorMessage = rec.Err.Error()
	}

	if err := s.rows.Create(ctx, nil, row); err != nil {
		s.log.Warn("Audit row insert failed",
			"reading_id", readingID.String(),
			"step_name", rec.StepName,
			"error", err,
		)
	}
}

func (s *auditService) History(ctx context.Context, readingID uuid.UUID) ([]*types.ReadingProcessData, error) {
	return s.rows.GetByReadingID(ctx, nil, readingID)
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
