package types

import (
	"time"

	"github.com/google/uuid"
)

// ReadingCard is one dealt card persisted for a reading. PositionOrder is
// 1-based and forms a gapless permutation within the reading.
type ReadingCard struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReadingID           uuid.UUID `gorm:"type:uuid;column:reading_id;not null;index" json:"reading_id"`
	CardID              uuid.UUID `gorm:"type:uuid;column:card_id;not null" json:"card_id"`
	Position            string    `gorm:"column:position;not null" json:"position"`
	PositionOrder       int       `gorm:"column:position_order;not null" json:"position_order"`
	PositionDescription string    `gorm:"column:position_description" json:"position_description,omitempty"`
	IsReversed          bool      `gorm:"column:is_reversed;not null" json:"is_reversed"`
	CardSelectedAt      time.Time `gorm:"column:card_selected_at;not null;default:now()" json:"card_selected_at"`
}

func (ReadingCard) TableName() string {
	return "reading_cards"
}
