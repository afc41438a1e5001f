package output

import (
	"context"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

type LLMPort interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

type ChatRequest struct {
	System    string
	Messages  []entity.Message
	Tools     []entity.ToolDefinition
	MaxTokens int
}

type ChatResponse struct {
	Message      entity.Message
	InputTokens  int
	OutputTokens int
}
