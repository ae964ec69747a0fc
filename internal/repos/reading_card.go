package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

type ReadingCardRepo interface {
	Create(ctx context.Context, tx *gorm.DB, cards []*types.ReadingCard) error
	GetByReadingID(ctx context.Context, tx *gorm.DB, readingID uuid.UUID) ([]*types.ReadingCard, error)
}

type readingCardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReadingCardRepo(db *gorm.DB, baseLog *logger.Logger) ReadingCardRepo {
	return &readingCardRepo{db: db, log: baseLog.With("repo", "ReadingCardRepo")}
}

func (r *readingCardRepo) Create(ctx context.Context, tx *gorm.DB, cards []*types.ReadingCard) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(cards) == 0 {
		return nil
	}
	err := transaction.WithContext(ctx).Create(cards).Error
	if IsUniqueViolation(err) {
		// Rows already written by an earlier attempt for the same reading.
		r.log.Warn("Reading cards already persisted, skipping re-insert",
			"reading_id", cards[0].ReadingID)
		return nil
	}
	return err
}

func (r *readingCardRepo) GetByReadingID(ctx context.Context, tx *gorm.DB, readingID uuid.UUID) ([]*types.ReadingCard, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ReadingCard
	if err := transaction.WithContext(ctx).
		Where("reading_id = ?", readingID).
		Order("position_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
