package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

type CardRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, cards []*types.Card) error
	GetBySource(ctx context.Context, tx *gorm.DB, source string) ([]*types.Card, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Card, error)
	GetByName(ctx context.Context, tx *gorm.DB, source, nameEN string) (*types.Card, error)
	ListSources(ctx context.Context, tx *gorm.DB) ([]string, error)
}

type cardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardRepo(db *gorm.DB, baseLog *logger.Logger) CardRepo {
	return &cardRepo{db: db, log: baseLog.With("repo", "CardRepo")}
}

func (r *cardRepo) Upsert(ctx context.Context, tx *gorm.DB, cards []*types.Card) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(cards) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}, {Name: "card_name_en"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"card_name_cn", "card_number", "suit", "arcana", "description",
			"upright_meaning", "reversed_meaning", "symbolic_meaning",
			"additional_meanings", "image_url", "updated_at",
		}),
	}).CreateInBatches(cards, 100).Error
}

func (r *cardRepo) GetBySource(ctx context.Context, tx *gorm.DB, source string) ([]*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Card
	if err := transaction.WithContext(ctx).
		Where("source = ?", source).
		Order("arcana, suit, card_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *cardRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Card
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *cardRepo) GetByName(ctx context.Context, tx *gorm.DB, source, nameEN string) (*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Card
	err := transaction.WithContext(ctx).
		Where("source = ? AND card_name_en = ?", source, nameEN).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *cardRepo) ListSources(ctx context.Context, tx *gorm.DB) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var sources []string
	if err := transaction.WithContext(ctx).
		Model(&types.Card{}).
		Distinct("source").
		Order("source ASC").
		Pluck("source", &sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}
