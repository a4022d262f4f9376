// Package google provides the Gemini implementation of llm.LLMClient.
package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/genai"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/tools"
)

// GeminiClient wraps the Google GenAI client. The SDK client needs a context to
// construct, so it is created on first use.
type GeminiClient struct {
	client *genai.Client
	apiKey string
	model  string
	mu     sync.Mutex
}

// NewGeminiClientWithModel creates a raw Gemini client; middleware is applied by the factory.
func NewGeminiClientWithModel(apiKey, model string) llm.LLMClient {
	return &GeminiClient{apiKey: apiKey, model: model}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "failed to create Gemini client")
	}
	g.client = client
	return client, nil
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // value request matches the interface
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return llm.CompletionResponse{}, err
	}

	contents, config, err := buildRequest(&in)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "cannot build Gemini request")
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	out := llm.CompletionResponse{
		Content:    result.Text(),
		StopReason: stopReason(result),
	}
	if result.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	for i, call := range result.FunctionCalls() {
		id := call.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", call.Name, i)
		}
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{ID: id, Name: call.Name, Parameters: call.Args})
	}
	return out, nil
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

func buildRequest(in *llm.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	system, rest := llm.SplitSystem(in.Messages)
	contents, err := convertMessages(rest)
	if err != nil {
		return nil, nil, err
	}

	temperature := in.Temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if in.MaxTokens > 0 {
		config.MaxOutputTokens = int32(in.MaxTokens) //nolint:gosec // bounded by config validation
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(in.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(in.Tools)}}
		config.ToolConfig = convertToolChoice(in.ToolChoice)
	}
	return contents, config, nil
}

// convertMessages maps the conversation to Gemini contents. Function responses
// are matched to their call by ID, since Gemini wants the function name back.
func convertMessages(messages []llm.CompletionMessage) ([]*genai.Content, error) {
	if len(messages) == 0 {
		return nil, errors.New("message list cannot be empty")
	}

	callNames := make(map[string]string)
	contents := make([]*genai.Content, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		var parts []*genai.Part

		switch msg.Role {
		case llm.RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				callNames[tc.ID] = tc.Name
				part := genai.NewPartFromFunctionCall(tc.Name, tc.Parameters)
				part.FunctionCall.ID = tc.ID
				parts = append(parts, part)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case llm.RoleUser:
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				name, ok := callNames[tr.ToolCallID]
				if !ok {
					return nil, fmt.Errorf("tool result %q answers no earlier call", tr.ToolCallID)
				}
				part := genai.NewPartFromFunctionResponse(name, map[string]any{
					"content":  tr.Content,
					"is_error": tr.IsError,
				})
				part.FunctionResponse.ID = tr.ToolCallID
				parts = append(parts, part)
			}
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
			}
		default:
			return nil, fmt.Errorf("unsupported role %q at index %d", msg.Role, i)
		}
	}
	return contents, nil
}

func convertTools(defs []tools.ToolDefinition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(defs))
	for i := range defs {
		def := &defs[i]
		properties := make(map[string]*genai.Schema, len(def.InputSchema.Properties))
		for name := range def.InputSchema.Properties {
			prop := def.InputSchema.Properties[name]
			properties[name] = convertProperty(&prop)
		}
		out[i] = &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   def.InputSchema.Required,
			},
		}
	}
	return out
}

func convertProperty(prop *tools.Property) *genai.Schema {
	schema := &genai.Schema{Description: prop.Description, Enum: prop.Enum}
	switch prop.Type {
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if prop.Items != nil {
			schema.Items = convertProperty(prop.Items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if len(prop.Properties) > 0 {
			schema.Properties = make(map[string]*genai.Schema, len(prop.Properties))
			for name, child := range prop.Properties {
				if child != nil {
					schema.Properties[name] = convertProperty(child)
				}
			}
		}
		schema.Required = prop.Required
	default:
		schema.Type = genai.TypeString
	}
	return schema
}

func convertToolChoice(choice string) *genai.ToolConfig {
	cfg := &genai.FunctionCallingConfig{}
	switch choice {
	case "", llm.ToolChoiceAuto:
		cfg.Mode = genai.FunctionCallingConfigModeAuto
	case llm.ToolChoiceAny:
		cfg.Mode = genai.FunctionCallingConfigModeAny
	default:
		cfg.Mode = genai.FunctionCallingConfigModeAny
		cfg.AllowedFunctionNames = []string{choice}
	}
	return &genai.ToolConfig{FunctionCallingConfig: cfg}
}

func stopReason(result *genai.GenerateContentResponse) string {
	if len(result.Candidates) == 0 || result.Candidates[0] == nil {
		return "unknown"
	}
	if reason := string(result.Candidates[0].FinishReason); reason != "" {
		return strings.ToLower(reason)
	}
	return "end_turn"
}

// classifyError reads the status from the SDK's "Error <code>, Message: ..." text.
func classifyError(err error) error {
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, "Error "); ok {
		digits, _, _ := strings.Cut(after, ",")
		if code, convErr := strconv.Atoi(strings.TrimSpace(digits)); convErr == nil && code >= 400 {
			return llmerrors.FromStatus(code, err, "gemini")
		}
	}
	return llmerrors.Classify(err, "gemini")
}
