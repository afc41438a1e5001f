package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/medright/mac-computer-use-v1/internal/di"
	"github.com/medright/mac-computer-use-v1/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	task := strings.Join(os.Args[1:], " ")
	if task == "" {
		fmt.Println("\nEnter a task for the agent:")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatal("failed to read input: ", err)
		}
		task = strings.TrimSpace(line)
	}
	if task == "" {
		log.Fatal("no task given")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	provider := envService.GetDefault("PROVIDER", "anthropic")
	var anthropicKey, openaiKey string
	switch provider {
	case "anthropic":
		anthropicKey = envService.MustGet("ANTHROPIC_API_KEY")
	case "openai":
		openaiKey = envService.MustGet("OPENAI_API_KEY")
	}

	container, err := di.NewContainer(ctx, di.Config{
		TaskName:          task,
		Provider:          provider,
		AnthropicAPIKey:   anthropicKey,
		OpenAIAPIKey:      openaiKey,
		BaseURL:           envService.Get("API_BASE_URL"),
		Model:             envService.Get("MODEL"),
		VirtualWidth:      envService.GetInt("WIDTH", 0),
		VirtualHeight:     envService.GetInt("HEIGHT", 0),
		DisplayNum:        envService.GetInt("DISPLAY_NUM", 0),
		ScreenshotDelayMs: envService.GetInt("SCREENSHOT_DELAY_MS", 0),
		TypingDelayMs:     envService.GetInt("TYPING_DELAY_MS", 0),
		ShellTimeout:      time.Duration(envService.GetInt("SHELL_TIMEOUT_SEC", 120)) * time.Second,
		APICallsPerMinute: envService.GetInt("API_RPM", 0),
		MaxIterations:     envService.GetInt("MAX_ITERATIONS", 0),
		MaxTokens:         envService.GetInt("MAX_TOKENS", 0),
	})
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer container.Close()

	container.Logger.Info("Task started", "task", task)
	fmt.Println("\nAgent is working...")

	result, err := container.TaskExecutor.Execute(ctx, task)
	if err != nil {
		container.Logger.Error("Task failed", "error", err)
		fmt.Printf("\nExecution failed: %v\n", err)
		os.Exit(1)
	}

	container.Logger.Info("Task completed", "iterations", result.Iterations)
	fmt.Println("\nFINAL ANSWER:")
	fmt.Println(result.FinalAnswer)
}
