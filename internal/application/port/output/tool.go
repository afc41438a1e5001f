package output

import (
	"context"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

type ToolPort interface {
	Name() entity.ToolName
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, arguments string) (*entity.ToolResult, error)
}

type ToolRegistry interface {
	Register(tool ToolPort)
	Get(name entity.ToolName) (ToolPort, bool)
	All() []ToolPort
	Definitions() []entity.ToolDefinition
}
