package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

type ReadingProcessDataRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ReadingProcessData) error
	GetByReadingID(ctx context.Context, tx *gorm.DB, readingID uuid.UUID) ([]*types.ReadingProcessData, error)
}

type readingProcessDataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReadingProcessDataRepo(db *gorm.DB, baseLog *logger.Logger) ReadingProcessDataRepo {
	return &readingProcessDataRepo{db: db, log: baseLog.With("repo", "ReadingProcessDataRepo")}
}

func (r *readingProcessDataRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ReadingProcessData) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *readingProcessDataRepo) GetByReadingID(ctx context.Context, tx *gorm.DB, readingID uuid.UUID) ([]*types.ReadingProcessData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ReadingProcessData
	if err := transaction.WithContext(ctx).
		Where("reading_id = ?", readingID).
		Order("step_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
