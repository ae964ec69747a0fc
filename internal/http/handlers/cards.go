package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/repos"
	"github.com/arcanelabs/tarot-backend/internal/services"
)

type CardHandler struct {
	log   *logger.Logger
	cards repos.CardRepo
	deck  services.DeckService
}

func NewCardHandler(cardRepo repos.CardRepo, deck services.DeckService, log *logger.Logger) *CardHandler {
	return &CardHandler{log: log.With("handler", "CardHandler"), cards: cardRepo, deck: deck}
}

func (h *CardHandler) ListSources(c *gin.Context) {
	sources, err := h.deck.Sources(c.Request.Context())
	if err != nil {
		h.log.Error("Source list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

func (h *CardHandler) ListCards(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source query parameter is required"})
		return
	}
	cards, err := h.cards.GetBySource(c.Request.Context(), nil, source)
	if err != nil {
		h.log.Error("Card list failed", "source", source, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": source, "count": len(cards), "cards": cards})
}

func (h *CardHandler) GetCard(c *gin.Context) {
	source := c.Query("source")
	name := c.Param("name")
	if source == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source and name are required"})
		return
	}
	card, err := h.cards.GetByName(c.Request.Context(), nil, source, name)
	if err != nil {
		h.log.Error("Card lookup failed", "source", source, "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}
