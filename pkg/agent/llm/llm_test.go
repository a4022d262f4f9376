package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llm/llmtest"
	"appbuilder/pkg/tools"
)

func TestChain_Order(t *testing.T) {
	var order []string
	base := llmtest.FuncClient(func(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		order = append(order, "base")
		return llm.CompletionResponse{Content: "ok"}, nil
	})

	tag := func(name string) llm.Middleware {
		return func(next llm.LLMClient) llm.LLMClient {
			return llm.WrapClient(
				func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
					order = append(order, name)
					return next.Complete(ctx, req)
				},
				next.GetModelName,
			)
		}
	}

	client := llm.Chain(base, tag("outer"), nil, tag("inner"))
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"outer", "inner", "base"}, order)
	assert.Equal(t, "func-model", client.GetModelName())
}

func TestSplitSystem(t *testing.T) {
	system, rest := llm.SplitSystem([]llm.CompletionMessage{
		llm.NewSystemMessage("one"),
		llm.NewUserMessage("question"),
		llm.NewSystemMessage("two"),
	})
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, rest, 1)
	assert.Equal(t, llm.RoleUser, rest[0].Role)
}

func TestCompletionRequestValidate(t *testing.T) {
	req := llm.NewCompletionRequest(nil)
	assert.Error(t, req.Validate())

	req = llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")})
	require.NoError(t, req.Validate())

	req.ToolChoice = "write_file"
	assert.ErrorContains(t, req.Validate(), "names no offered tool")

	req.Tools = []tools.ToolDefinition{{Name: "write_file"}}
	assert.NoError(t, req.Validate())

	req.Temperature = 3
	assert.Error(t, req.Validate())
}

type widget struct {
	Name  string   `json:"name"`
	Parts []string `json:"parts"`
}

func widgetSchema() tools.InputSchema {
	return tools.InputSchema{
		Type: "object",
		Properties: map[string]tools.Property{
			"name":  {Type: "string"},
			"parts": {Type: "array", Items: &tools.Property{Type: "string"}},
		},
		Required: []string{"name", "parts"},
	}
}

func TestStructuredGenerator_ForcedToolCall(t *testing.T) {
	client := llmtest.NewScriptedClient(llmtest.ToolCall("call_1", "submit_widget", map[string]any{
		"name":  "gear",
		"parts": []any{"teeth", "hub"},
	}))
	gen := llm.NewToolStructuredGenerator[widget](client, "submit_widget", "Submit a widget", widgetSchema())

	out, err := gen.Generate(context.Background(), "be precise", "make a gear")
	require.NoError(t, err)
	assert.Equal(t, &widget{Name: "gear", Parts: []string{"teeth", "hub"}}, out)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "submit_widget", reqs[0].ToolChoice)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "submit_widget", reqs[0].Tools[0].Name)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, reqs[0].Messages[0].Role)
	assert.Equal(t, "make a gear", reqs[0].Messages[1].Content)
}

func TestStructuredGenerator_JSONContentFallback(t *testing.T) {
	client := llmtest.NewScriptedClient(llmtest.Text("```json\n{\"name\":\"cog\",\"parts\":[]}\n```"))
	gen := llm.NewToolStructuredGenerator[widget](client, "submit_widget", "", widgetSchema())

	out, err := gen.Generate(context.Background(), "", "make a cog")
	require.NoError(t, err)
	assert.Equal(t, "cog", out.Name)
}

func TestStructuredGenerator_NoResult(t *testing.T) {
	tests := []struct {
		step llmtest.Step
		name string
	}{
		{name: "plain text", step: llmtest.Text("I cannot help with that")},
		{name: "wrong tool", step: llmtest.ToolCall("c", "other_tool", map[string]any{"name": "x"})},
		{name: "undecodable", step: llmtest.ToolCall("c", "submit_widget", map[string]any{"name": 42})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := llm.NewToolStructuredGenerator[widget](llmtest.NewScriptedClient(tt.step), "submit_widget", "", widgetSchema())
			out, err := gen.Generate(context.Background(), "", "x")
			assert.Nil(t, out)
			assert.ErrorIs(t, err, llm.ErrNoStructuredResult)
		})
	}
}

func TestStructuredGenerator_Validator(t *testing.T) {
	client := llmtest.NewScriptedClient(llmtest.ToolCall("c", "submit_widget", map[string]any{"name": "", "parts": []any{}}))
	gen := llm.NewToolStructuredGenerator[widget](client, "submit_widget", "", widgetSchema(),
		llm.WithValidator(func(w *widget) error {
			if w.Name == "" {
				return errors.New("name is empty")
			}
			return nil
		}),
		llm.WithMaxTokens[widget](1000),
		llm.WithTemperature[widget](0.1),
	)

	_, err := gen.Generate(context.Background(), "", "x")
	assert.ErrorIs(t, err, llm.ErrNoStructuredResult)
	assert.ErrorContains(t, err, "name is empty")

	req := client.Requests()[0]
	assert.Equal(t, 1000, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-6)
}

func TestStructuredGenerator_ModelError(t *testing.T) {
	boom := errors.New("provider down")
	gen := llm.NewToolStructuredGenerator[widget](llmtest.NewScriptedClient(llmtest.Fail(boom)), "submit_widget", "", widgetSchema())

	_, err := gen.Generate(context.Background(), "", "x")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, llm.ErrNoStructuredResult)
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, llm.ExtractJSONObject(`here you go: {"a":1} thanks`))
	assert.Equal(t, "", llm.ExtractJSONObject("no json"))
	assert.Equal(t, "", llm.ExtractJSONObject("{not json}"))
}
