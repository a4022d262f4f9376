// Package llmtest provides scripted LLM clients for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"appbuilder/pkg/agent/llm"
)

// Step is one scripted reply: a response or an error.
type Step struct {
	Err      error
	Response llm.CompletionResponse
}

// Reply scripts a successful response.
func Reply(resp llm.CompletionResponse) Step {
	return Step{Response: resp}
}

// Fail scripts an error.
func Fail(err error) Step {
	return Step{Err: err}
}

// ToolCall scripts a response containing a single tool call.
func ToolCall(id, name string, params map[string]any) Step {
	return Step{Response: llm.CompletionResponse{
		ToolCalls:  []llm.ToolCall{{ID: id, Name: name, Parameters: params}},
		StopReason: "tool_use",
	}}
}

// Text scripts a plain text response.
func Text(content string) Step {
	return Step{Response: llm.CompletionResponse{Content: content, StopReason: "end_turn"}}
}

// ScriptedClient replays steps in order and records every request. When the script
// runs out it returns an error, or keeps replaying the fallback if one is set.
type ScriptedClient struct {
	fallback *Step
	model    string
	steps    []Step
	requests []llm.CompletionRequest
	mu       sync.Mutex
}

// NewScriptedClient creates a client replaying steps.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{model: "scripted-model", steps: steps}
}

// WithFallback makes the client answer every call past the script with step.
func (c *ScriptedClient) WithFallback(step Step) *ScriptedClient {
	c.fallback = &step
	return c
}

// Complete returns the next scripted step.
func (c *ScriptedClient) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	var step Step
	switch {
	case len(c.steps) > 0:
		step = c.steps[0]
		c.steps = c.steps[1:]
	case c.fallback != nil:
		step = *c.fallback
	default:
		return llm.CompletionResponse{}, fmt.Errorf("scripted client: no more responses (call %d)", len(c.requests))
	}
	if step.Err != nil {
		return llm.CompletionResponse{}, step.Err
	}
	return step.Response, nil
}

// GetModelName returns the fixed model name.
func (c *ScriptedClient) GetModelName() string {
	return c.model
}

// Requests returns a copy of the requests seen so far.
func (c *ScriptedClient) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Calls returns how many times Complete was invoked.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Remaining returns how many scripted steps were not consumed.
func (c *ScriptedClient) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}

// FuncClient adapts a function to llm.LLMClient for tests that compute replies
// from the request.
type FuncClient func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error)

// Complete calls the function.
func (f FuncClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	return f(ctx, req)
}

// GetModelName returns a fixed model name.
func (f FuncClient) GetModelName() string {
	return "func-model"
}
