// Package ollama provides the Ollama implementation of llm.LLMClient for locally
// hosted open-weight models.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/tools"
)

// DefaultHost is used when no host is configured or the configured one does not parse.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
	model  string
}

// NewOllamaClientWithModel creates a raw Ollama client; middleware is applied by the factory.
func NewOllamaClientWithModel(hostURL, model string) llm.LLMClient {
	parsed, err := url.Parse(hostURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		parsed, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client: api.NewClient(parsed, http.DefaultClient),
		model:  model,
	}
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // value request matches the interface
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	req, err := buildRequest(o.model, &in)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "cannot build Ollama request")
	}

	var response api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	calls, err := convertToolCalls(response.Message.ToolCalls)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeEmptyResponse, err, "cannot parse tool arguments")
	}
	return llm.CompletionResponse{
		Content:    response.Message.Content,
		ToolCalls:  calls,
		StopReason: stopReason(&response),
		Usage: llm.Usage{
			InputTokens:  response.PromptEvalCount,
			OutputTokens: response.EvalCount,
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

func buildRequest(model string, in *llm.CompletionRequest) (*api.ChatRequest, error) {
	messages, err := convertMessages(in.Messages)
	if err != nil {
		return nil, err
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
		},
	}
	if in.MaxTokens > 0 {
		req.Options["num_predict"] = in.MaxTokens
	}
	if len(in.Tools) > 0 {
		// Ollama has no tool_choice; a forced tool is the only tool offered.
		defs := in.Tools
		if in.ToolChoice != "" && in.ToolChoice != llm.ToolChoiceAuto && in.ToolChoice != llm.ToolChoiceAny {
			defs = nil
			for i := range in.Tools {
				if in.Tools[i].Name == in.ToolChoice {
					defs = append(defs, in.Tools[i])
				}
			}
		}
		toolList, err := convertTools(defs)
		if err != nil {
			return nil, err
		}
		req.Tools = toolList
	}
	return req, nil
}

// convertMessages maps the conversation onto Ollama messages. Tool results become
// separate "tool" role messages.
func convertMessages(messages []llm.CompletionMessage) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("message list cannot be empty")
	}

	out := make([]api.Message, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
		default:
			return nil, fmt.Errorf("unsupported role %q at index %d", msg.Role, i)
		}

		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			out = append(out, api.Message{Role: "tool", Content: tr.Content, ToolCallID: tr.ToolCallID})
		}
		if len(msg.ToolResults) > 0 && msg.Content == "" {
			continue
		}

		converted := api.Message{Role: string(msg.Role), Content: msg.Content}
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			args := api.NewToolCallFunctionArguments()
			for k, v := range tc.Parameters {
				args.Set(k, v)
			}
			converted.ToolCalls = append(converted.ToolCalls, api.ToolCall{
				ID:       tc.ID,
				Function: api.ToolCallFunction{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, converted)
	}
	return out, nil
}

// convertTools builds Ollama tools from their JSON wire form, which keeps this
// package independent of the SDK's ordered property containers.
func convertTools(defs []tools.ToolDefinition) (api.Tools, error) {
	wire := make([]map[string]any, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		wire = append(wire, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  def.InputSchema.ToSchemaMap(),
			},
		})
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode tools: %w", err)
	}
	var out api.Tools
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	return out, nil
}

func convertToolCalls(calls []api.ToolCall) ([]llm.ToolCall, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]llm.ToolCall, len(calls))
	for i := range calls {
		call := &calls[i]
		raw, err := json.Marshal(&call.Function.Arguments)
		if err != nil {
			return nil, err
		}
		var params map[string]any
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out[i] = llm.ToolCall{ID: id, Name: call.Function.Name, Parameters: params}
	}
	return out, nil
}

func stopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llmerrors.FromStatus(statusErr.StatusCode, err, "ollama")
	}
	return llmerrors.Classify(err, "ollama")
}
