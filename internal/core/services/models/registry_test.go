package models

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_RegisteredDefaults(t *testing.T) {
	model, err := Get("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", model.Provider)
	assert.Greater(t, model.CompletionCostPerToken, model.PromptCostPerToken)

	_, err = Get("no-such-model")
	assert.Error(t, err)
}

func TestGet_MissingModelConcurrentWithRegister(t *testing.T) {
	// The not-found path must not re-acquire the registry lock while a
	// writer is queued, or this interleaving deadlocks.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				Register(ComparisonModel{ID: fmt.Sprintf("race-model-%d", i), Provider: "openai"})
				_, err := Get("never-registered")
				assert.Error(t, err)
			}(i)
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("registry lookup deadlocked against concurrent registration")
	}
}

func TestIsComparisonModel(t *testing.T) {
	assert.True(t, IsComparisonModel("gpt-4o"))
	assert.False(t, IsComparisonModel("ft-custom-123"))
}

func TestCompletionCost(t *testing.T) {
	cost := CompletionCost("gpt-4o", 1000, 500)
	assert.InDelta(t, 1000*0.0000025+500*0.00001, cost, 1e-12)

	assert.Zero(t, CompletionCost("unknown-model", 1000, 500))
}

func TestEstimateTokenCount(t *testing.T) {
	assert.Equal(t, 0, EstimateTokenCount(""))
	assert.Equal(t, 1, EstimateTokenCount("abc"))
	assert.Equal(t, 1, EstimateTokenCount("abcd"))
	assert.Equal(t, 2, EstimateTokenCount("abcde"))
	assert.Equal(t, 25, EstimateTokenCount(string(make([]byte, 100))))
}
