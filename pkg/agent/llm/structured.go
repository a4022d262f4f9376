package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"appbuilder/pkg/tools"
)

// ErrNoStructuredResult means the model produced nothing that decodes into the
// requested shape.
var ErrNoStructuredResult = errors.New("model returned no structured result")

// StructuredGenerator produces a value of type T from instructions and an input.
type StructuredGenerator[T any] interface {
	Generate(ctx context.Context, instructions, input string) (*T, error)
}

// ToolStructuredGenerator implements StructuredGenerator with a single forced tool
// call whose input schema is T's schema.
type ToolStructuredGenerator[T any] struct {
	client      LLMClient
	validate    func(*T) error
	tool        tools.ToolDefinition
	maxTokens   int
	temperature float32
}

// StructuredOption configures a ToolStructuredGenerator.
type StructuredOption[T any] func(*ToolStructuredGenerator[T])

// WithValidator rejects decoded values that fail validate.
func WithValidator[T any](validate func(*T) error) StructuredOption[T] {
	return func(g *ToolStructuredGenerator[T]) { g.validate = validate }
}

// WithMaxTokens overrides the completion token budget.
func WithMaxTokens[T any](n int) StructuredOption[T] {
	return func(g *ToolStructuredGenerator[T]) { g.maxTokens = n }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature[T any](temp float32) StructuredOption[T] {
	return func(g *ToolStructuredGenerator[T]) { g.temperature = temp }
}

// NewToolStructuredGenerator builds a generator that forces the named tool.
func NewToolStructuredGenerator[T any](client LLMClient, name, description string, schema tools.InputSchema, opts ...StructuredOption[T]) *ToolStructuredGenerator[T] {
	g := &ToolStructuredGenerator[T]{
		client: client,
		tool: tools.ToolDefinition{
			Name:        name,
			Description: description,
			InputSchema: schema,
		},
		maxTokens:   DefaultMaxTokens,
		temperature: TemperatureDefault,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the model for exactly one call to the generator's tool and decodes
// the arguments into T. Model errors are returned as-is; anything else that leaves
// no usable value yields ErrNoStructuredResult.
func (g *ToolStructuredGenerator[T]) Generate(ctx context.Context, instructions, input string) (*T, error) {
	messages := make([]CompletionMessage, 0, 2)
	if instructions != "" {
		messages = append(messages, NewSystemMessage(instructions))
	}
	messages = append(messages, NewUserMessage(input))

	req := CompletionRequest{
		Messages:    messages,
		Tools:       []tools.ToolDefinition{g.tool},
		ToolChoice:  g.tool.Name,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("structured generation via %s failed: %w", g.tool.Name, err)
	}

	raw, err := g.payload(&resp)
	if err != nil {
		return nil, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s arguments do not decode: %w", ErrNoStructuredResult, g.tool.Name, err)
	}
	if g.validate != nil {
		if err := g.validate(&out); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoStructuredResult, err)
		}
	}
	return &out, nil
}

// payload picks the JSON to decode: the forced tool call when present, otherwise a
// JSON object in the text content for providers that ignore tool choice.
func (g *ToolStructuredGenerator[T]) payload(resp *CompletionResponse) ([]byte, error) {
	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].Name != g.tool.Name {
			continue
		}
		raw, err := json.Marshal(resp.ToolCalls[i].Parameters)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoStructuredResult, err)
		}
		return raw, nil
	}

	if obj := ExtractJSONObject(resp.Content); obj != "" {
		return []byte(obj), nil
	}
	return nil, fmt.Errorf("%w: no %s call in response", ErrNoStructuredResult, g.tool.Name)
}

// ExtractJSONObject returns the outermost {...} span of s, skipping markdown fences,
// or "" when there is none.
func ExtractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}
