// Package executor runs the agent loop: send the conversation to the
// model, execute the tool calls it requests, feed results back, and stop
// when the model answers without requesting tools.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/medright/mac-computer-use-v1/internal/application/port/input"
	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
	"github.com/medright/mac-computer-use-v1/internal/ratelimit"
)

var _ input.TaskExecutor = (*UseCase)(nil)

const (
	defaultMaxIterations = 50
	defaultMaxTokens     = 4096

	// Screenshots older than the most recent keepRecentImages are dropped
	// from history, in chunks so prompt caching stays effective.
	keepRecentImages  = 10
	imageRemovalChunk = 5
)

// ToolDispatcher executes one tool call and returns the tool message.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call entity.ToolCall) entity.Message
}

type UseCase struct {
	llm           output.LLMPort
	dispatcher    ToolDispatcher
	tools         output.ToolRegistry
	limiter       *ratelimit.Limiter
	logger        output.LoggerPort
	systemPrompt  string
	maxIterations int
	maxTokens     int
	sleep         func(ctx context.Context, d time.Duration) error
}

type Options struct {
	SystemPrompt  string
	MaxIterations int
	MaxTokens     int
}

func NewUseCase(
	llm output.LLMPort,
	dispatcher ToolDispatcher,
	tools output.ToolRegistry,
	limiter *ratelimit.Limiter,
	logger output.LoggerPort,
	opts Options,
) *UseCase {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &UseCase{
		llm:           llm,
		dispatcher:    dispatcher,
		tools:         tools,
		limiter:       limiter,
		logger:        logger,
		systemPrompt:  opts.SystemPrompt,
		maxIterations: opts.MaxIterations,
		maxTokens:     opts.MaxTokens,
		sleep:         sleepContext,
	}
}

func (uc *UseCase) Execute(ctx context.Context, task string) (*input.ExecuteResult, error) {
	uc.logger.Info("starting task", "task", task)

	messages := []entity.Message{
		{Role: entity.RoleUser, Content: task},
	}
	definitions := uc.tools.Definitions()

	for iteration := 1; iteration <= uc.maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		messages = pruneImages(messages, keepRecentImages, imageRemovalChunk)

		if err := uc.waitForAPIBudget(ctx); err != nil {
			return nil, err
		}

		uc.logger.Debug("requesting completion",
			"iteration", iteration,
			"messages", len(messages),
			"estimatedTokens", estimateTokens(uc.systemPrompt, messages))

		resp, err := uc.llm.Chat(ctx, output.ChatRequest{
			System:    uc.systemPrompt,
			Messages:  messages,
			Tools:     definitions,
			MaxTokens: uc.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("completion failed at iteration %d: %w", iteration, err)
		}

		uc.logger.Info("assistant turn",
			"iteration", iteration,
			"toolCalls", len(resp.Message.ToolCalls),
			"inputTokens", resp.InputTokens,
			"outputTokens", resp.OutputTokens)

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			uc.logger.Info("task finished", "iterations", iteration)
			return &input.ExecuteResult{
				FinalAnswer: resp.Message.Content,
				Iterations:  iteration,
			}, nil
		}

		for _, call := range resp.Message.ToolCalls {
			toolMsg := uc.dispatcher.Dispatch(ctx, call)
			messages = append(messages, toolMsg)
		}
	}

	return nil, fmt.Errorf("task did not finish within %d iterations", uc.maxIterations)
}

// waitForAPIBudget consumes one API call permit, waiting out a single
// deferral. A second deferral means the window is saturated beyond what
// one wait can fix, so the task fails.
func (uc *UseCase) waitForAPIBudget(ctx context.Context) error {
	result := uc.limiter.Check(ratelimit.CategoryAPICalls)
	if result.State == ratelimit.Deferred {
		uc.logger.Warn("API call budget exhausted, waiting", "retryAfter", result.RetryAfter)
		if err := uc.sleep(ctx, result.RetryAfter); err != nil {
			return err
		}
		result = uc.limiter.Check(ratelimit.CategoryAPICalls)
	}

	switch result.State {
	case ratelimit.Allowed:
		return nil
	case ratelimit.Rejected:
		return fmt.Errorf("API call rejected: %s", result.Reason)
	default:
		return fmt.Errorf("API call budget still exhausted after waiting %s", result.RetryAfter)
	}
}

// pruneImages clears screenshots beyond the keep most recent ones. The
// text of the pruned tool results stays. Removal happens in chunks of
// chunk images so the early conversation stays byte-stable between calls.
func pruneImages(messages []entity.Message, keep, chunk int) []entity.Message {
	var withImages []int
	for i, msg := range messages {
		if msg.Role == entity.RoleTool && msg.Image != "" {
			withImages = append(withImages, i)
		}
	}

	toRemove := len(withImages) - keep
	if toRemove <= 0 {
		return messages
	}
	if chunk > 1 {
		toRemove -= toRemove % chunk
	}

	for _, idx := range withImages[:min(toRemove, len(withImages))] {
		msg := messages[idx]
		msg.Image = ""
		if msg.Content == "" {
			msg.Content = "(screenshot removed from history)"
		}
		messages[idx] = msg
	}
	return messages
}

// estimateTokens is a coarse chars/4 heuristic used only for logging.
func estimateTokens(system string, messages []entity.Message) int {
	chars := len(system)
	for _, msg := range messages {
		chars += len(msg.Content) + len(msg.Image)
		for _, call := range msg.ToolCalls {
			chars += len(call.Arguments)
		}
	}
	return chars / 4
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
