package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appbuilder/pkg/agent/llm"
	"appbuilder/pkg/agent/llm/llmtest"
	"appbuilder/pkg/agent/llmerrors"
)

func TestEmptyResponseMiddleware(t *testing.T) {
	tests := []struct {
		step    llmtest.Step
		name    string
		wantErr bool
	}{
		{name: "text", step: llmtest.Text("hello")},
		{name: "tool call", step: llmtest.ToolCall("c", "write_file", nil)},
		{name: "blank", step: llmtest.Text("  \n"), wantErr: true},
		{name: "nothing", step: llmtest.Reply(llm.CompletionResponse{}), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.Chain(llmtest.NewScriptedClient(tt.step), EmptyResponseMiddleware())
			_, err := client.Complete(context.Background(), llm.CompletionRequest{})
			if tt.wantErr {
				assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
				return
			}
			require.NoError(t, err)
		})
	}
}
