package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

var _ output.ToolPort = (*BashTool)(nil)

// BashTool runs commands in a persistent bash session.
type BashTool struct {
	session *shellSession
}

func NewBashTool(timeout time.Duration, logger output.LoggerPort) *BashTool {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &BashTool{session: newShellSession(timeout, logger)}
}

type bashInput struct {
	Command string `json:"command,omitempty"`
	Restart bool   `json:"restart,omitempty"`
}

func (t *BashTool) Name() entity.ToolName {
	return entity.ToolBash
}

func (t *BashTool) Description() string {
	return "Runs commands in a persistent bash session. Directory and environment changes carry over to later commands."
}

func (t *BashTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "Command to run.",
			},
			"restart": map[string]interface{}{
				"type":        "boolean",
				"description": "Restart the session instead of running a command.",
			},
		},
	}
}

func (t *BashTool) Execute(ctx context.Context, arguments string) (*entity.ToolResult, error) {
	var input bashInput
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return nil, fmt.Errorf("invalid input format: %w", err)
	}

	if input.Restart {
		t.session.Restart()
		return &entity.ToolResult{System: "bash session has been restarted"}, nil
	}
	if input.Command == "" {
		return nil, fmt.Errorf("command is required")
	}

	result, err := t.session.Run(ctx, input.Command)
	if err != nil {
		return nil, err
	}

	out := result.output
	if result.exitCode != 0 {
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("exit status %d", result.exitCode)
	}
	return &entity.ToolResult{Output: out}, nil
}

// Close terminates the underlying shell process.
func (t *BashTool) Close() {
	t.session.Close()
}
