package service

import (
	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

type ToolRegistryImpl struct {
	tools map[entity.ToolName]output.ToolPort
	order []entity.ToolName
}

func NewToolRegistry() *ToolRegistryImpl {
	return &ToolRegistryImpl{
		tools: make(map[entity.ToolName]output.ToolPort),
	}
}

func (r *ToolRegistryImpl) Register(tool output.ToolPort) {
	if _, ok := r.tools[tool.Name()]; !ok {
		r.order = append(r.order, tool.Name())
	}
	r.tools[tool.Name()] = tool
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *ToolRegistryImpl) All() []output.ToolPort {
	result := make([]output.ToolPort, 0, len(r.tools))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

func (r *ToolRegistryImpl) Definitions() []entity.ToolDefinition {
	result := make([]entity.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.All() {
		result = append(result, entity.ToolDefinition{
			Name:        tool.Name().String(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return result
}
