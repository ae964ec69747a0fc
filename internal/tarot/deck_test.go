package tarot

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arcanelabs/tarot-backend/internal/types"
)

var majorNames = []string{
	"The Fool", "The Magician", "The High Priestess", "The Empress", "The Emperor",
	"The Hierophant", "The Lovers", "The Chariot", "Strength", "The Hermit",
	"Wheel of Fortune", "Justice", "The Hanged Man", "Death", "Temperance",
	"The Devil", "The Tower", "The Star", "The Moon", "The Sun",
	"Judgement", "The World",
}

var minorRanks = []string{
	"Ace", "Two", "Three", "Four", "Five", "Six", "Seven",
	"Eight", "Nine", "Ten", "Page", "Knight", "Queen", "King",
}

// testDeck builds a complete 78-card corpus for one source.
func testDeck(source string) []*types.Card {
	deck := make([]*types.Card, 0, 78)
	for i, name := range majorNames {
		deck = append(deck, &types.Card{
			ID:             uuid.New(),
			Source:         source,
			CardNameEN:     name,
			CardNumber:     i,
			Suit:           types.SuitMajor,
			Arcana:         types.ArcanaMajor,
			UprightMeaning: "upright " + name,
		})
	}
	for _, suit := range []types.Suit{types.SuitWands, types.SuitCups, types.SuitSwords, types.SuitPentacles} {
		for num, rank := range minorRanks {
			name := fmt.Sprintf("%s of %s", rank, titleSuit(suit))
			deck = append(deck, &types.Card{
				ID:             uuid.New(),
				Source:         source,
				CardNameEN:     name,
				CardNumber:     num + 1,
				Suit:           suit,
				Arcana:         types.ArcanaMinor,
				UprightMeaning: "upright " + name,
			})
		}
	}
	return deck
}

func findCard(deck []*types.Card, name string) *types.Card {
	for _, c := range deck {
		if c.CardNameEN == name {
			return c
		}
	}
	return nil
}
