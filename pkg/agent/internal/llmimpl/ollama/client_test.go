package ollama

import (
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/tools"
)

func makeToolCallArgs(m map[string]any) api.ToolCallFunctionArguments {
	args := api.NewToolCallFunctionArguments()
	for k, v := range m {
		args.Set(k, v)
	}
	return args
}

func TestNewOllamaClientWithModel(t *testing.T) {
	for _, host := range []string{"http://localhost:11434", "http://10.0.0.5:11434", "not-a-valid-url"} {
		client := NewOllamaClientWithModel(host, "qwen2.5-coder:7b")
		require.NotNil(t, client)
		assert.Equal(t, "qwen2.5-coder:7b", client.GetModelName())
	}
}

func TestConvertMessages(t *testing.T) {
	out, err := convertMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("build"),
		llm.NewAssistantMessage("", []llm.ToolCall{{ID: "c1", Name: "read_file", Parameters: map[string]any{"path": "a.txt"}}}),
		llm.NewToolResultMessage([]llm.ToolResult{{ToolCallID: "c1", Content: "hello"}}),
	})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, "system", out[0].Role)
	assert.Equal(t, "user", out[1].Role)
	assert.Equal(t, "assistant", out[2].Role)
	require.Len(t, out[2].ToolCalls, 1)
	assert.Equal(t, "read_file", out[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "tool", out[3].Role)
	assert.Equal(t, "c1", out[3].ToolCallID)
	assert.Equal(t, "hello", out[3].Content)

	_, err = convertMessages(nil)
	assert.Error(t, err)
}

func TestBuildRequest_ForcedToolNarrowsTools(t *testing.T) {
	req := llm.CompletionRequest{
		Messages: []llm.CompletionMessage{llm.NewUserMessage("x")},
		Tools: []tools.ToolDefinition{
			{Name: "submit_plan", InputSchema: tools.InputSchema{Type: "object"}},
			{Name: "other", InputSchema: tools.InputSchema{Type: "object"}},
		},
		ToolChoice: "submit_plan",
		MaxTokens:  256,
	}
	out, err := buildRequest("m", &req)
	require.NoError(t, err)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "submit_plan", out.Tools[0].Function.Name)
	assert.Equal(t, 256, out.Options["num_predict"])
	require.NotNil(t, out.Stream)
	assert.False(t, *out.Stream)
}

func TestConvertTools(t *testing.T) {
	out, err := convertTools([]tools.ToolDefinition{{
		Name:        "write_file",
		Description: "Write a file",
		InputSchema: tools.InputSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"path":    {Type: "string", Description: "Relative path"},
				"content": {Type: "string"},
			},
			Required: []string{"path", "content"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "function", out[0].Type)
	assert.Equal(t, "write_file", out[0].Function.Name)
	assert.Equal(t, "Write a file", out[0].Function.Description)
	assert.Equal(t, []string{"path", "content"}, out[0].Function.Parameters.Required)
}

func TestConvertToolCalls(t *testing.T) {
	out, err := convertToolCalls([]api.ToolCall{
		{ID: "call_a", Function: api.ToolCallFunction{Name: "list_files", Arguments: makeToolCallArgs(map[string]any{"directory": "."})}},
		{Function: api.ToolCallFunction{Name: "get_current_directory", Arguments: makeToolCallArgs(map[string]any{})}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "call_a", out[0].ID)
	assert.Equal(t, map[string]any{"directory": "."}, out[0].Parameters)
	assert.Equal(t, "call_1", out[1].ID)

	none, err := convertToolCalls(nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStopReason(t *testing.T) {
	tests := []struct {
		resp api.ChatResponse
		want string
	}{
		{api.ChatResponse{Done: false}, "incomplete"},
		{api.ChatResponse{Done: true}, "end_turn"},
		{api.ChatResponse{Done: true, DoneReason: "stop"}, "end_turn"},
		{api.ChatResponse{Done: true, DoneReason: "length"}, "max_tokens"},
		{api.ChatResponse{Done: true, DoneReason: "load"}, "load"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stopReason(&tt.resp))
	}
}

func TestClassifyError(t *testing.T) {
	err := classifyError(api.StatusError{StatusCode: 404, ErrorMessage: "model not found"})
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))

	err = classifyError(api.StatusError{StatusCode: 503})
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeTransient))
}
