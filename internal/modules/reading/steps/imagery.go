package steps

import (
	"context"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading/prompts"
	"github.com/arcanelabs/tarot-backend/internal/services"
	"github.com/arcanelabs/tarot-backend/internal/tarot"
)

const imageryTemperature = 0.7

// ImageryGenerator streams a poetic description of the spread from the
// visual chunks harvested during per-card retrieval.
type ImageryGenerator struct {
	model services.ModelClient
	log   *logger.Logger
	pref  string
}

func NewImageryGenerator(model services.ModelClient, modelPreference string, log *logger.Logger) *ImageryGenerator {
	return &ImageryGenerator{
		model: model,
		log:   log.With("step", "imagery_description"),
		pref:  modelPreference,
	}
}

// Generate streams token chunks through onChunk and returns the assembled
// text. With no visual material at all it returns the fixed fallback
// sentence without calling the model.
func (g *ImageryGenerator) Generate(
	ctx context.Context,
	cards []tarot.DealtCard,
	questionDomain string,
	visual map[string][]string,
	onChunk func(string),
) (text, prompt string, err error) {
	hasVisual := false
	for _, refs := range visual {
		if len(refs) > 0 {
			hasVisual = true
			break
		}
	}
	if !hasVisual {
		g.log.Info("No visual chunks retrieved, using fallback imagery")
		if onChunk != nil {
			onChunk(prompts.ImageryFallback)
		}
		return prompts.ImageryFallback, "", nil
	}

	system, p := prompts.Imagery(cards, questionDomain, visual)
	chunks, errc := g.model.ChatStream(ctx, services.ChatRequest{
		System:      system,
		Prompt:      p,
		Model:       g.pref,
		Temperature: imageryTemperature,
	})

	var b strings.Builder
	for chunk := range chunks {
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := <-errc; err != nil {
		return "", p, err
	}
	return b.String(), p, nil
}
