package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

func TestNewAdapterRequiresAPIKey(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	assert.Error(t, err)

	adapter, err := NewAdapter(Config{APIKey: "test-key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultModel, adapter.model)
}

func TestConvertMessagesMergesConsecutiveToolResults(t *testing.T) {
	messages := []entity.Message{
		{Role: entity.RoleUser, Content: "open the browser"},
		{
			Role: entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{
				{ID: "call_1", Name: "computer", Arguments: `{"action":"screenshot"}`},
				{ID: "call_2", Name: "bash", Arguments: `{"command":"ls"}`},
			},
		},
		{Role: entity.RoleTool, ToolCallID: "call_1", Name: "computer", Image: "aW1n"},
		{Role: entity.RoleTool, ToolCallID: "call_2", Name: "bash", Content: "file.txt"},
	}

	converted, err := convertMessages(messages)
	require.NoError(t, err)

	// user, assistant, then one user turn carrying both tool results.
	require.Len(t, converted, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, converted[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, converted[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, converted[2].Role)
	require.Len(t, converted[2].Content, 2)
	require.NotNil(t, converted[2].Content[0].OfToolResult)
	require.NotNil(t, converted[2].Content[1].OfToolResult)
	assert.Equal(t, "call_1", converted[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "call_2", converted[2].Content[1].OfToolResult.ToolUseID)
}

func TestConvertMessagesSkipsSystemRole(t *testing.T) {
	converted, err := convertMessages([]entity.Message{
		{Role: entity.RoleSystem, Content: "be careful"},
		{Role: entity.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Len(t, converted, 1)
}

func TestConvertMessagesRejectsMalformedToolArguments(t *testing.T) {
	_, err := convertMessages([]entity.Message{
		{
			Role:      entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{{ID: "call_1", Name: "bash", Arguments: "not json"}},
		},
	})
	assert.Error(t, err)
}

func TestToolResultBlockCarriesTextImageAndError(t *testing.T) {
	block := toolResultBlock(entity.Message{
		Role:       entity.RoleTool,
		ToolCallID: "call_9",
		Content:    "took a screenshot",
		Image:      "cGl4ZWxz",
		IsError:    true,
	})

	require.NotNil(t, block.OfToolResult)
	result := block.OfToolResult
	assert.Equal(t, "call_9", result.ToolUseID)
	assert.True(t, result.IsError.Value)

	require.Len(t, result.Content, 2)
	require.NotNil(t, result.Content[0].OfText)
	assert.Equal(t, "took a screenshot", result.Content[0].OfText.Text)
	require.NotNil(t, result.Content[1].OfImage)
	assert.Equal(t, "cGl4ZWxz", result.Content[1].OfImage.Source.OfBase64.Data)
}

func TestConvertTools(t *testing.T) {
	tools := []entity.ToolDefinition{
		{
			Name:        "computer",
			Description: "Controls the desktop.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{"type": "string"},
				},
				"required": []string{"action"},
			},
		},
	}

	converted, err := convertTools(tools)
	require.NoError(t, err)
	require.Len(t, converted, 1)
	require.NotNil(t, converted[0].OfTool)
	assert.Equal(t, "computer", converted[0].OfTool.Name)
	assert.Equal(t, "Controls the desktop.", converted[0].OfTool.Description.Value)
	assert.Contains(t, converted[0].OfTool.InputSchema.Properties, "action")
}
