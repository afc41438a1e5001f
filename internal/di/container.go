package di

import (
	"context"
	"fmt"
	"time"

	"github.com/medright/mac-computer-use-v1/internal/adapter/tool"
	"github.com/medright/mac-computer-use-v1/internal/application/port/input"
	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/application/service"
	"github.com/medright/mac-computer-use-v1/internal/display"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/desktop/cliclick"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/desktop/screencapture"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/llm/anthropic"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/llm/openaicompat"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/logger"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/prompts"
	"github.com/medright/mac-computer-use-v1/internal/ratelimit"
	"github.com/medright/mac-computer-use-v1/internal/usecase/dispatcher"
	"github.com/medright/mac-computer-use-v1/internal/usecase/executor"
)

type Container struct {
	Logger       output.LoggerPort
	LLM          output.LLMPort
	Tools        output.ToolRegistry
	Transformer  *display.Transformer
	TaskExecutor input.TaskExecutor

	bash *tool.BashTool
}

type Config struct {
	TaskName string

	// Provider is "anthropic" or "openai". Anthropic is the default.
	Provider        string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	BaseURL         string
	Model           string

	// Virtual resolution override. Zero picks the nearest supported
	// resolution to the real display's aspect ratio.
	VirtualWidth  int
	VirtualHeight int

	DisplayNum        int
	ScreenshotDelayMs int
	TypingDelayMs     int
	ShellTimeout      time.Duration
	APICallsPerMinute int
	SystemPrompt      string
	MaxIterations     int
	MaxTokens         int
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(cfg.TaskName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	screen, err := screencapture.NewAdapter(screencapture.Config{
		DisplayNum: cfg.DisplayNum,
		DelayMs:    cfg.ScreenshotDelayMs,
		Logger:     log,
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	pointer, err := cliclick.NewAdapter(cliclick.Config{
		TypingDelayMs: cfg.TypingDelayMs,
		Logger:        log,
	})
	if err != nil {
		log.Close()
		return nil, err
	}

	realW, realH, err := screen.DetectResolution(ctx)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to detect display resolution: %w", err)
	}
	profile, err := display.NewProfile(realW, realH, cfg.VirtualWidth, cfg.VirtualHeight)
	if err != nil {
		log.Close()
		return nil, err
	}
	transformer := display.NewTransformer(profile)
	log.Info("display profile",
		"realWidth", profile.RealWidth, "realHeight", profile.RealHeight,
		"virtualWidth", profile.VirtualWidth, "virtualHeight", profile.VirtualHeight)

	limiterCfg := ratelimit.DefaultConfig()
	if cfg.APICallsPerMinute > 0 {
		limiterCfg.Windows[ratelimit.CategoryAPICalls] = ratelimit.WindowRule{
			MaxCount: cfg.APICallsPerMinute,
			Window:   time.Minute,
		}
	}
	limiter := ratelimit.NewLimiter(limiterCfg)

	bash := tool.NewBashTool(cfg.ShellTimeout, log)

	tools := service.NewToolRegistry()
	tools.Register(tool.NewComputerTool(transformer, pointer, pointer, screen, log))
	tools.Register(bash)
	tools.Register(tool.NewEditorTool())

	dispatch, err := dispatcher.NewUseCase(tools, limiter, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	llm, err := newLLM(cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = prompts.Default(profile.VirtualWidth, profile.VirtualHeight)
	}

	uc := executor.NewUseCase(llm, dispatch, tools, limiter, log, executor.Options{
		SystemPrompt:  systemPrompt,
		MaxIterations: cfg.MaxIterations,
		MaxTokens:     cfg.MaxTokens,
	})

	return &Container{
		Logger:       log,
		LLM:          llm,
		Tools:        tools,
		Transformer:  transformer,
		TaskExecutor: uc,
		bash:         bash,
	}, nil
}

func newLLM(cfg Config, log output.LoggerPort) (output.LLMPort, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return anthropic.NewAdapter(anthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, log)
	case "openai":
		llmCfg := openaicompat.DefaultConfig(cfg.OpenAIAPIKey, cfg.Model)
		if cfg.BaseURL != "" {
			llmCfg.BaseURL = cfg.BaseURL
		}
		llmCfg.Logger = log
		return openaicompat.NewAdapter(llmCfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func (c *Container) Close() {
	if c.bash != nil {
		c.bash.Close()
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
