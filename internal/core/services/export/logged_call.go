package export

import (
	"encoding/json"

	"github.com/finetunelab/platform/internal/core/domain"
)

type recordedRequest struct {
	Messages       json.RawMessage `json:"messages"`
	Functions      json.RawMessage `json:"functions"`
	FunctionCall   json.RawMessage `json:"function_call"`
	Tools          json.RawMessage `json:"tools"`
	ToolChoice     json.RawMessage `json:"tool_choice"`
	ResponseFormat json.RawMessage `json:"response_format"`
}

type recordedResponse struct {
	Choices []struct {
		Message json.RawMessage `json:"message"`
	} `json:"choices"`
}

// RowFromLoggedCall extracts the training example recorded in a logged
// call's request/response payloads. Returns false for calls without a
// usable request and completion.
func RowFromLoggedCall(call domain.LoggedCall) (Row, bool) {
	if call.ModelResponse == nil {
		return Row{}, false
	}

	var req recordedRequest
	if err := json.Unmarshal(call.ModelResponse.ReqPayload, &req); err != nil {
		return Row{}, false
	}
	if len(req.Messages) == 0 {
		return Row{}, false
	}

	var resp recordedResponse
	if err := json.Unmarshal(call.ModelResponse.RespPayload, &resp); err != nil {
		return Row{}, false
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message) == 0 {
		return Row{}, false
	}

	return Row{
		Input: InputPayload{
			Messages:       req.Messages,
			Functions:      req.Functions,
			FunctionCall:   req.FunctionCall,
			Tools:          req.Tools,
			ToolChoice:     req.ToolChoice,
			ResponseFormat: req.ResponseFormat,
		},
		Output: resp.Choices[0].Message,
	}, true
}

// RowFromEntry builds an export row from a dataset entry version
func RowFromEntry(entry domain.DatasetEntry) (Row, bool) {
	if len(entry.Messages) == 0 || len(entry.Output) == 0 {
		return Row{}, false
	}

	return Row{
		Input: InputPayload{
			Messages:       json.RawMessage(entry.Messages),
			Functions:      json.RawMessage(entry.Functions),
			FunctionCall:   json.RawMessage(entry.FunctionCall),
			Tools:          json.RawMessage(entry.Tools),
			ToolChoice:     json.RawMessage(entry.ToolChoice),
			ResponseFormat: json.RawMessage(entry.ResponseFormat),
		},
		Output: json.RawMessage(entry.Output),
	}, true
}
