// Package anthropic adapts the Anthropic Messages API to the LLM port.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

var _ output.LLMPort = (*Adapter)(nil)

const defaultModel = "claude-sonnet-4-20250514"

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Adapter struct {
	client anthropic.Client
	model  string
	logger output.LoggerPort
}

func NewAdapter(config Config, logger output.LoggerPort) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Adapter{
		client: anthropic.NewClient(opts...),
		model:  config.Model,
		logger: logger,
	}, nil
}

func (a *Adapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		Messages:  messages,
		MaxTokens: int64(req.MaxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: req.System,
			},
		}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}

	message := convertResponseMessage(resp)
	if a.logger != nil {
		a.logger.Debug("anthropic response",
			"stopReason", string(resp.StopReason),
			"inputTokens", resp.Usage.InputTokens,
			"outputTokens", resp.Usage.OutputTokens,
			"toolCalls", len(message.ToolCalls))
	}

	return &output.ChatResponse{
		Message:      message,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// convertMessages maps the flat conversation onto Anthropic's alternating
// user/assistant turns. Tool messages become tool_result blocks inside a
// user turn; consecutive tool messages collapse into one turn.
func convertMessages(messages []entity.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			result = append(result, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case entity.RoleSystem:
			// Handled separately via params.System.
			continue

		case entity.RoleTool:
			pendingResults = append(pendingResults, toolResultBlock(msg))

		case entity.RoleAssistant:
			flushResults()
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
					return nil, fmt.Errorf("invalid arguments for tool call %s: %w", call.ID, err)
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			result = append(result, anthropic.NewAssistantMessage(content...))

		default:
			flushResults()
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	flushResults()
	return result, nil
}

func toolResultBlock(msg entity.Message) anthropic.ContentBlockParamUnion {
	block := anthropic.ToolResultBlockParam{ToolUseID: msg.ToolCallID}
	if msg.IsError {
		block.IsError = anthropic.Bool(true)
	}

	var content []anthropic.ToolResultBlockParamContentUnion
	if msg.Content != "" {
		content = append(content, anthropic.ToolResultBlockParamContentUnion{
			OfText: &anthropic.TextBlockParam{Text: msg.Content},
		})
	}
	if msg.Image != "" {
		content = append(content, anthropic.ToolResultBlockParamContentUnion{
			OfImage: &anthropic.ImageBlockParam{
				Source: anthropic.ImageBlockParamSourceUnion{
					OfBase64: &anthropic.Base64ImageSourceParam{
						MediaType: anthropic.Base64ImageSourceMediaTypeImagePNG,
						Data:      msg.Image,
					},
				},
			},
		})
	}
	if len(content) > 0 {
		block.Content = content
	}

	return anthropic.ContentBlockParamUnion{OfToolResult: &block}
}

func convertTools(tools []entity.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		raw, err := json.Marshal(tool.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", tool.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", tool.Name, err)
		}

		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid schema for tool %s", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}

func convertResponseMessage(resp *anthropic.Message) entity.Message {
	message := entity.Message{Role: entity.RoleAssistant}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			if message.Content != "" {
				message.Content += "\n"
			}
			message.Content += variant.Text
		case anthropic.ToolUseBlock:
			message.ToolCalls = append(message.ToolCalls, entity.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}
	return message
}
