package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/finetunelab/platform/internal/core/domain"
	"github.com/finetunelab/platform/internal/core/services/jobs"
	"github.com/finetunelab/platform/internal/core/services/models"
	"github.com/finetunelab/platform/internal/pkg/config"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// OpenAIProvider produces chat completions through the OpenAI API
type OpenAIProvider struct {
	client  *openai.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIProvider creates a new OpenAI completion provider
func NewOpenAIProvider(cfg *config.LLMConfig, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &OpenAIProvider{
		client:  openai.NewClient(cfg.OpenAIAPIKey),
		timeout: timeout,
		logger:  logger,
	}
}

// RequestForEntry builds the chat completion request that reproduces an
// entry's recorded call shape against the given model
func RequestForEntry(model string, entry *domain.DatasetEntry) (openai.ChatCompletionRequest, error) {
	req := openai.ChatCompletionRequest{Model: model}

	if err := json.Unmarshal(entry.Messages, &req.Messages); err != nil {
		return req, apperrors.BadRequest(fmt.Sprintf("entry has invalid messages: %v", err))
	}
	if len(req.Messages) == 0 {
		return req, apperrors.BadRequest("entry has no messages")
	}

	if len(entry.Functions) > 0 {
		if err := json.Unmarshal(entry.Functions, &req.Functions); err != nil {
			return req, apperrors.BadRequest(fmt.Sprintf("entry has invalid functions: %v", err))
		}
	}
	if len(entry.FunctionCall) > 0 {
		if err := json.Unmarshal(entry.FunctionCall, &req.FunctionCall); err != nil {
			return req, apperrors.BadRequest(fmt.Sprintf("entry has invalid function_call: %v", err))
		}
	}
	if len(entry.Tools) > 0 {
		if err := json.Unmarshal(entry.Tools, &req.Tools); err != nil {
			return req, apperrors.BadRequest(fmt.Sprintf("entry has invalid tools: %v", err))
		}
	}
	if len(entry.ToolChoice) > 0 {
		if err := json.Unmarshal(entry.ToolChoice, &req.ToolChoice); err != nil {
			return req, apperrors.BadRequest(fmt.Sprintf("entry has invalid tool_choice: %v", err))
		}
	}
	if len(entry.ResponseFormat) > 0 {
		var format openai.ChatCompletionResponseFormat
		if err := json.Unmarshal(entry.ResponseFormat, &format); err != nil {
			return req, apperrors.BadRequest(fmt.Sprintf("entry has invalid response_format: %v", err))
		}
		req.ResponseFormat = &format
	}

	return req, nil
}

// Complete runs one chat completion for an entry's input
func (p *OpenAIProvider) Complete(ctx context.Context, model string, entry *domain.DatasetEntry) (*jobs.CompletionResult, error) {
	req, err := RequestForEntry(model, entry)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, apperrors.LLMRequestFailed(err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.LLMInvalidResponse("completion returned no choices")
	}

	output, err := json.Marshal(resp.Choices[0].Message)
	if err != nil {
		return nil, apperrors.LLMInvalidResponse(fmt.Sprintf("failed to encode completion message: %v", err))
	}

	result := &jobs.CompletionResult{
		Output:       output,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Cost:         models.CompletionCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}

	p.logger.Debug("completion finished",
		slog.String("model", model),
		slog.String("entry_id", entry.ID.String()),
		slog.Int("prompt_tokens", result.InputTokens),
		slog.Int("completion_tokens", result.OutputTokens),
	)

	return result, nil
}
