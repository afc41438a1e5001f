// Package dispatcher routes tool calls from the model to registered tools,
// validating arguments and enforcing rate limits on the way.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
	"github.com/medright/mac-computer-use-v1/internal/ratelimit"
)

type UseCase struct {
	tools   output.ToolRegistry
	limiter *ratelimit.Limiter
	logger  output.LoggerPort
	schemas map[string]*jsonschema.Schema
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewUseCase(tools output.ToolRegistry, limiter *ratelimit.Limiter, logger output.LoggerPort) (*UseCase, error) {
	schemas := make(map[string]*jsonschema.Schema)
	for _, def := range tools.Definitions() {
		raw, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid schema for tool %s: %w", def.Name, err)
		}
		schema, err := jsonschema.CompileString(def.Name+".json", string(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for tool %s: %w", def.Name, err)
		}
		schemas[def.Name] = schema
	}

	return &UseCase{
		tools:   tools,
		limiter: limiter,
		logger:  logger,
		schemas: schemas,
		sleep:   sleepContext,
	}, nil
}

// Dispatch executes a single tool call and returns the tool message to
// append to the conversation. Failures never escape as Go errors; they
// come back as error-flagged tool messages so the model can react.
func (uc *UseCase) Dispatch(ctx context.Context, call entity.ToolCall) entity.Message {
	uc.logger.Info("dispatching tool call", "tool", call.Name, "id", call.ID)

	tool, ok := uc.tools.Get(entity.ToolName(call.Name))
	if !ok {
		return uc.errorMessage(call, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	arguments := call.Arguments
	if arguments == "" {
		arguments = "{}"
	}
	if err := uc.validate(call.Name, arguments); err != nil {
		return uc.errorMessage(call, fmt.Sprintf("invalid arguments: %v", err))
	}

	if msg, blocked := uc.applyRateLimit(ctx, call, arguments); blocked {
		return msg
	}

	result, err := tool.Execute(ctx, arguments)
	if err != nil {
		uc.logger.Warn("tool call failed", "tool", call.Name, "id", call.ID, "error", err)
		return uc.errorMessage(call, err.Error())
	}
	if result.IsError() {
		return uc.errorMessage(call, result.Error)
	}

	return uc.resultMessage(call, result)
}

func (uc *UseCase) validate(toolName, arguments string) error {
	schema, ok := uc.schemas[toolName]
	if !ok {
		return nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(arguments), &value); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return schema.Validate(value)
}

// applyRateLimit checks the category of the call, waiting once when the
// limiter defers. A second deferral or an outright rejection produces an
// error-flagged message.
func (uc *UseCase) applyRateLimit(ctx context.Context, call entity.ToolCall, arguments string) (entity.Message, bool) {
	category, gated := categoryFor(entity.ToolName(call.Name), arguments)
	if !gated {
		return entity.Message{}, false
	}

	result := uc.limiter.Check(category)
	if result.State == ratelimit.Deferred {
		uc.logger.Debug("tool call deferred", "tool", call.Name, "category", string(category), "retryAfter", result.RetryAfter)
		if err := uc.sleep(ctx, result.RetryAfter); err != nil {
			return uc.errorMessage(call, err.Error()), true
		}
		result = uc.limiter.Check(category)
	}

	switch result.State {
	case ratelimit.Allowed:
		return entity.Message{}, false
	case ratelimit.Rejected:
		return uc.errorMessage(call, fmt.Sprintf("rate limit rejected %s: %s", category, result.Reason)), true
	default:
		return uc.errorMessage(call, fmt.Sprintf("rate limit exceeded for %s, retry in %s", category, result.RetryAfter)), true
	}
}

// categoryFor maps a tool call to its rate-limit category. Screenshots
// have their own budget; all other computer actions count as input
// events. Shell and editor calls are not gated.
func categoryFor(tool entity.ToolName, arguments string) (ratelimit.Category, bool) {
	if tool != entity.ToolComputer {
		return "", false
	}
	var probe struct {
		Action string `json:"action"`
	}
	_ = json.Unmarshal([]byte(arguments), &probe)
	switch entity.Action(probe.Action) {
	case entity.ActionScreenshot:
		return ratelimit.CategoryScreenshots, true
	case entity.ActionCursorPosition, entity.ActionWait:
		return "", false
	default:
		return ratelimit.CategoryInputEvents, true
	}
}

func (uc *UseCase) resultMessage(call entity.ToolCall, result *entity.ToolResult) entity.Message {
	content := result.Output
	if result.System != "" {
		prefixed := "<system>" + result.System + "</system>"
		if content != "" {
			content = prefixed + "\n" + content
		} else {
			content = prefixed
		}
	}
	return entity.Message{
		Role:       entity.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    content,
		Image:      result.Base64Image,
	}
}

func (uc *UseCase) errorMessage(call entity.ToolCall, text string) entity.Message {
	return entity.Message{
		Role:       entity.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    text,
		IsError:    true,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
