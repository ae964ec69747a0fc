package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPresets maps the short user-facing model preferences to backend
// identifiers. The built-in table covers the supported preferences; an
// optional YAML file overrides it per deployment.
type ModelPresets struct {
	Models map[string]string `yaml:"models"`
}

type presetsFile struct {
	OpenAI     ModelPresets `yaml:"openai"`
	OpenRouter ModelPresets `yaml:"openrouter"`
}

func builtinPresets(provider string) ModelPresets {
	if provider == "openrouter" {
		return ModelPresets{Models: map[string]string{
			"deepseek":       "deepseek/deepseek-chat-v3-0324",
			"deepseek_r1":    "deepseek/deepseek-r1",
			"gpt4omini":      "openai/gpt-4o-mini",
			"gemini_2.5_pro": "google/gemini-2.5-pro",
		}}
	}
	// Direct OpenAI cannot serve non-OpenAI families; route those
	// preferences to the nearest available model.
	return ModelPresets{Models: map[string]string{
		"deepseek":       "gpt-4o-mini",
		"deepseek_r1":    "o4-mini",
		"gpt4omini":      "gpt-4o-mini",
		"gemini_2.5_pro": "gpt-4o",
	}}
}

// LoadModelPresets reads the per-provider preset table from path, merging
// over the built-in defaults so partial files stay valid. An empty path
// returns the defaults unchanged.
func LoadModelPresets(path, provider string) (ModelPresets, error) {
	base := builtinPresets(provider)
	if path == "" {
		return base, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ModelPresets{}, fmt.Errorf("read model presets: %w", err)
	}
	var file presetsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return ModelPresets{}, fmt.Errorf("parse model presets: %w", err)
	}

	override := file.OpenAI
	if provider == "openrouter" {
		override = file.OpenRouter
	}
	for pref, model := range override.Models {
		base.Models[pref] = model
	}
	return base, nil
}
