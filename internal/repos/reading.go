package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

type ReadingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, reading *types.Reading) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Reading, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Reading, error)
}

type readingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReadingRepo(db *gorm.DB, baseLog *logger.Logger) ReadingRepo {
	return &readingRepo{db: db, log: baseLog.With("repo", "ReadingRepo")}
}

func (r *readingRepo) Create(ctx context.Context, tx *gorm.DB, reading *types.Reading) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if reading == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(reading).Error
}

func (r *readingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Reading, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Reading
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *readingRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(fields) == 0 {
		return nil
	}
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Reading{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *readingRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Reading, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var results []*types.Reading
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
