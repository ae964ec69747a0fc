package services

import (
	"context"
	"fmt"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/tarot"
	"github.com/arcanelabs/tarot-backend/internal/types"
)

const fullDeckSize = 78

// DeckService loads the card corpus for a source and refuses to deal from an
// incomplete deck.
type DeckService interface {
	LoadDeck(ctx context.Context, source string) ([]*types.Card, error)
	FindCard(ctx context.Context, source, nameEN string) (*types.Card, error)
	Sources(ctx context.Context) ([]string, error)
}

type deckService struct {
	log   *logger.Logger
	cards repos.CardRepo
}

func NewDeckService(cardRepo repos.CardRepo, log *logger.Logger) DeckService {
	return &deckService{log: log.With("service", "DeckService"), cards: cardRepo}
}

func (s *deckService) LoadDeck(ctx context.Context, source string) ([]*types.Card, error) {
	deck, err := s.cards.GetBySource(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	if len(deck) != fullDeckSize {
		return nil, fmt.Errorf("%w: source %q has %d", tarot.ErrCorpusIncomplete, source, len(deck))
	}
	return deck, nil
}

func (s *deckService) FindCard(ctx context.Context, source, nameEN string) (*types.Card, error) {
	return s.cards.GetByName(ctx, nil, source, nameEN)
}

func (s *deckService) Sources(ctx context.Context) ([]string, error) {
	return s.cards.ListSources(ctx, nil)
}
