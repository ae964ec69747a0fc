package steps

import (
	"context"
	"strings"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/modules/reading/prompts"
	"github.com/arcanelabs/tarot-backend/internal/services"
)

const interpretationTemperature = 0.7

// Interpreter streams the final reading from the assembled pipeline state.
type Interpreter struct {
	model       services.ModelClient
	log         *logger.Logger
	defaultPref string
}

func NewInterpreter(model services.ModelClient, defaultModelPreference string, log *logger.Logger) *Interpreter {
	if defaultModelPreference == "" {
		defaultModelPreference = "gpt4omini"
	}
	return &Interpreter{
		model:       model,
		log:         log.With("step", "final_interpretation"),
		defaultPref: defaultModelPreference,
	}
}

// Interpret streams token chunks through onChunk and returns the full text.
// modelPreference overrides the default when non-empty.
func (i *Interpreter) Interpret(
	ctx context.Context,
	in prompts.InterpretationInput,
	modelPreference string,
	onChunk func(string),
) (text, prompt, modelUsed string, err error) {
	pref := modelPreference
	if pref == "" {
		pref = i.defaultPref
	}
	modelUsed = i.model.ResolveModel(pref)

	system, p := prompts.Interpretation(in)
	chunks, errc := i.model.ChatStream(ctx, services.ChatRequest{
		System:      system,
		Prompt:      p,
		Model:       pref,
		Temperature: interpretationTemperature,
	})

	var b strings.Builder
	for chunk := range chunks {
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := <-errc; err != nil {
		return "", p, modelUsed, err
	}
	return b.String(), p, modelUsed, nil
}
