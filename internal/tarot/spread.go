package tarot

import (
	"errors"
	"fmt"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

var (
	ErrCorpusIncomplete      = errors.New("tarot corpus incomplete: expected exactly 78 cards")
	ErrUnknownSpread         = errors.New("unknown spread: no position list defined")
	ErrSignificatorNotInDeck = errors.New("significator card not present in deck")
	ErrSignificatorMissing   = errors.New("significator card missing from corpus")
	ErrDeckTooSmall          = errors.New("deck too small for spread")
)

// SpreadPosition is one named slot of a spread layout.
type SpreadPosition struct {
	Name        string
	Order       int
	Description string
}

var threeCardPositions = []SpreadPosition{
	{Name: "past", Order: 1, Description: "Influences from the past that shaped the situation"},
	{Name: "present", Order: 2, Description: "The current state of the matter"},
	{Name: "future", Order: 3, Description: "The direction events are taking"},
}

var celticCrossPositions = []SpreadPosition{
	{Name: "cover", Order: 1, Description: "What covers the querent: the present atmosphere"},
	{Name: "crossing", Order: 2, Description: "What crosses it: the immediate obstacle"},
	{Name: "basis", Order: 3, Description: "What is beneath: the foundation of the matter"},
	{Name: "behind", Order: 4, Description: "What is behind: influences just passing away"},
	{Name: "crowned", Order: 5, Description: "What crowns: the best that may be achieved"},
	{Name: "before", Order: 6, Description: "What is before: what will come to pass"},
	{Name: "self", Order: 7, Description: "The querent's own position and attitude"},
	{Name: "environment", Order: 8, Description: "House and surroundings: influences of people nearby"},
	{Name: "hopes_and_fears", Order: 9, Description: "The querent's hopes and fears"},
	{Name: "outcome", Order: 10, Description: "The final result of all influences"},
}

// SpreadPositions returns the fixed position list for a dealable spread.
// work_cycle is recognized by question analysis for recommendation only and
// has no layout, so it fails here.
func SpreadPositions(spread types.SpreadType) ([]SpreadPosition, error) {
	switch spread {
	case types.SpreadThreeCard:
		return threeCardPositions, nil
	case types.SpreadCelticCross:
		return celticCrossPositions, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpread, spread)
	}
}

// UsesSignificator reports whether the spread sets a court card aside to
// represent the querent before dealing.
func UsesSignificator(spread types.SpreadType) bool {
	return spread == types.SpreadCelticCross
}
