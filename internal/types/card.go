package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Suit string

const (
	SuitMajor     Suit = "major"
	SuitWands     Suit = "wands"
	SuitCups      Suit = "cups"
	SuitSwords    Suit = "swords"
	SuitPentacles Suit = "pentacles"
)

type Arcana string

const (
	ArcanaMajor Arcana = "major"
	ArcanaMinor Arcana = "minor"
)

// Card is one of the 78 corpus cards for a named source. The pair
// (source, card_name_en) is unique; a complete source holds 22 majors
// numbered 0-21 and 4x14 minors numbered 1-14.
type Card struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Source             string         `gorm:"column:source;not null;uniqueIndex:uq_card_source_name" json:"source"`
	CardNameEN         string         `gorm:"column:card_name_en;not null;uniqueIndex:uq_card_source_name" json:"card_name_en"`
	CardNameCN         string         `gorm:"column:card_name_cn" json:"card_name_cn,omitempty"`
	CardNumber         int            `gorm:"column:card_number;not null" json:"card_number"`
	Suit               Suit           `gorm:"column:suit;not null" json:"suit"`
	Arcana             Arcana         `gorm:"column:arcana;not null" json:"arcana"`
	Description        string         `gorm:"column:description;type:text" json:"description"`
	UprightMeaning     string         `gorm:"column:upright_meaning;type:text" json:"upright_meaning"`
	ReversedMeaning    string         `gorm:"column:reversed_meaning;type:text" json:"reversed_meaning"`
	SymbolicMeaning    string         `gorm:"column:symbolic_meaning;type:text" json:"symbolic_meaning,omitempty"`
	AdditionalMeanings datatypes.JSON `gorm:"type:jsonb;column:additional_meanings" json:"additional_meanings,omitempty"`
	ImageURL           string         `gorm:"column:image_url" json:"image_url,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Card) TableName() string {
	return "tarot_cards"
}

func (c *Card) IsMajor() bool {
	return c != nil && c.Arcana == ArcanaMajor
}

// Court cards carry numbers 11-14 (Page, Knight, Queen, King).
func (c *Card) IsCourt() bool {
	return c != nil && c.Arcana == ArcanaMinor && c.CardNumber >= 11 && c.CardNumber <= 14
}

func (c *Card) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.CardNameCN != "" {
		return c.CardNameCN
	}
	return c.CardNameEN
}

// Element returns the classical element keyword for a minor suit, used to
// enrich semantic retrieval queries.
func (s Suit) Element() string {
	switch s {
	case SuitWands:
		return "fire"
	case SuitCups:
		return "water"
	case SuitSwords:
		return "air"
	case SuitPentacles:
		return "earth"
	default:
		return ""
	}
}
