package models

import (
	"fmt"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// ComparisonModel is a fixed external model that TEST entries can be
// evaluated against alongside fine-tunes
type ComparisonModel struct {
	ID                     string
	Provider               string
	PromptCostPerToken     float64
	CompletionCostPerToken float64
}

// Registry manages the comparison models available to datasets
type Registry struct {
	mu     sync.RWMutex
	models map[string]ComparisonModel
}

// Global registry instance
var globalRegistry = &Registry{
	models: make(map[string]ComparisonModel),
}

// Register adds a comparison model to the registry
func Register(model ComparisonModel) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	globalRegistry.models[model.ID] = model
}

// Get retrieves a comparison model by id
func Get(id string) (ComparisonModel, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	model, exists := globalRegistry.models[id]
	if !exists {
		// Build the list inline: calling ListAvailable here would
		// re-acquire the read lock and can deadlock against a queued writer.
		available := make([]string, 0, len(globalRegistry.models))
		for mid := range globalRegistry.models {
			available = append(available, mid)
		}
		return ComparisonModel{}, fmt.Errorf("comparison model '%s' not found. Available: %v", id, available)
	}

	return model, nil
}

// IsComparisonModel reports whether an id names a registered comparison
// model rather than a fine-tune
func IsComparisonModel(id string) bool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	_, exists := globalRegistry.models[id]
	return exists
}

// ListAvailable returns the ids of all registered comparison models
func ListAvailable() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	ids := make([]string, 0, len(globalRegistry.models))
	for id := range globalRegistry.models {
		ids = append(ids, id)
	}

	return ids
}

// CompletionCost prices one completion for a registered model. Unknown
// models cost zero; fine-tune inference is priced elsewhere.
func CompletionCost(modelID string, promptTokens, completionTokens int) float64 {
	model, err := Get(modelID)
	if err != nil {
		return 0
	}
	return float64(promptTokens)*model.PromptCostPerToken +
		float64(completionTokens)*model.CompletionCostPerToken
}

// EstimateTokenCount approximates the token count of a text as one token
// per four characters. Exact counts come from provider usage data; this
// covers entries that never hit a provider.
func EstimateTokenCount(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// init registers the default comparison models
func init() {
	Register(ComparisonModel{
		ID:                     openai.GPT4o,
		Provider:               "openai",
		PromptCostPerToken:     0.0000025,
		CompletionCostPerToken: 0.00001,
	})
	Register(ComparisonModel{
		ID:                     openai.GPT4Turbo,
		Provider:               "openai",
		PromptCostPerToken:     0.00001,
		CompletionCostPerToken: 0.00003,
	})
	Register(ComparisonModel{
		ID:                     openai.GPT3Dot5Turbo,
		Provider:               "openai",
		PromptCostPerToken:     0.0000005,
		CompletionCostPerToken: 0.0000015,
	})
}
