package google

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llmerrors"
	"appbuilder/pkg/tools"
)

func TestGetModelName(t *testing.T) {
	client := NewGeminiClientWithModel("key", "gemini-2.5-flash")
	assert.Equal(t, "gemini-2.5-flash", client.GetModelName())
}

func TestConvertMessages(t *testing.T) {
	contents, err := convertMessages([]llm.CompletionMessage{
		llm.NewUserMessage("build"),
		llm.NewAssistantMessage("", []llm.ToolCall{{ID: "c1", Name: "write_file", Parameters: map[string]any{"path": "a"}}}),
		llm.NewToolResultMessage([]llm.ToolResult{{ToolCallID: "c1", Content: "WROTE:/p/a"}}),
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "write_file", contents[1].Parts[0].FunctionCall.Name)

	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	resp := contents[2].Parts[0].FunctionResponse
	assert.Equal(t, "write_file", resp.Name)
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "WROTE:/p/a", resp.Response["content"])
}

func TestConvertMessages_OrphanResult(t *testing.T) {
	_, err := convertMessages([]llm.CompletionMessage{
		llm.NewToolResultMessage([]llm.ToolResult{{ToolCallID: "ghost", Content: "x"}}),
	})
	assert.ErrorContains(t, err, "answers no earlier call")
}

func TestBuildRequest(t *testing.T) {
	req := llm.CompletionRequest{
		Messages: []llm.CompletionMessage{llm.NewSystemMessage("sys"), llm.NewUserMessage("go")},
		Tools: []tools.ToolDefinition{{
			Name: "submit_plan",
			InputSchema: tools.InputSchema{
				Type: "object",
				Properties: map[string]tools.Property{
					"files": {Type: "array", Items: &tools.Property{
						Type:       "object",
						Properties: map[string]*tools.Property{"path": {Type: "string"}},
						Required:   []string{"path"},
					}},
				},
			},
		}},
		ToolChoice:  "submit_plan",
		MaxTokens:   100,
		Temperature: 0.3,
	}
	contents, cfg, err := buildRequest(&req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, int32(100), cfg.MaxOutputTokens)
	require.Len(t, cfg.Tools, 1)
	decl := cfg.Tools[0].FunctionDeclarations[0]
	files := decl.Parameters.Properties["files"]
	assert.Equal(t, genai.TypeArray, files.Type)
	assert.Equal(t, genai.TypeObject, files.Items.Type)
	assert.Equal(t, []string{"path"}, files.Items.Required)

	fc := cfg.ToolConfig.FunctionCallingConfig
	assert.Equal(t, genai.FunctionCallingConfigModeAny, fc.Mode)
	assert.Equal(t, []string{"submit_plan"}, fc.AllowedFunctionNames)
}

func TestConvertToolChoice(t *testing.T) {
	assert.Equal(t, genai.FunctionCallingConfigModeAuto, convertToolChoice("").FunctionCallingConfig.Mode)
	assert.Equal(t, genai.FunctionCallingConfigModeAny, convertToolChoice(llm.ToolChoiceAny).FunctionCallingConfig.Mode)
}

func TestClassifyError(t *testing.T) {
	err := classifyError(errors.New("Error 429, Message: quota exhausted, Status: RESOURCE_EXHAUSTED"))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeRateLimit))

	err = classifyError(errors.New("Error 400, Message: bad schema"))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))

	err = classifyError(errors.New("connection reset by peer"))
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeTransient))
}
