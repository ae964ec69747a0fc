package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

type RagChunkRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, chunks []*types.RagChunk) error
	GetByIDs(ctx context.Context, tx *gorm.DB, chunkIDs []string) ([]*types.RagChunk, error)
	CountBySource(ctx context.Context, tx *gorm.DB, source string) (int64, error)
}

type ragChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRagChunkRepo(db *gorm.DB, baseLog *logger.Logger) RagChunkRepo {
	return &ragChunkRepo{db: db, log: baseLog.With("repo", "RagChunkRepo")}
}

func (r *ragChunkRepo) Upsert(ctx context.Context, tx *gorm.DB, chunks []*types.RagChunk) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(chunks) == 0 {
		return nil
	}

	// Keep batches small because Text is large
	const batchSize = 100
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "text", "embedding", "metadata", "updated_at"}),
	}).CreateInBatches(chunks, batchSize).Error
}

func (r *ragChunkRepo) GetByIDs(ctx context.Context, tx *gorm.DB, chunkIDs []string) ([]*types.RagChunk, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RagChunk
	if len(chunkIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("chunk_id IN ?", chunkIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ragChunkRepo) CountBySource(ctx context.Context, tx *gorm.DB, source string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.RagChunk{}).
		Where("source = ?", source).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
