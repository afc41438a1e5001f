package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
)

var _ output.LoggerPort = (*LoggerAdapter)(nil)

// LoggerAdapter writes structured JSON logs to a per-task file under ./log/.
type LoggerAdapter struct {
	logger *zap.SugaredLogger
	base   *zap.Logger
}

func NewLoggerAdapter(taskName string) (*LoggerAdapter, error) {
	safeName := sanitize(taskName)
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02_15-04-05"), safeName)

	if err := os.MkdirAll("log", 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.Create(filepath.Join("log", filename))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(file),
		zapcore.DebugLevel,
	)
	base := zap.New(core)

	return &LoggerAdapter{
		logger: base.Sugar(),
		base:   base,
	}, nil
}

func (l *LoggerAdapter) Debug(msg string, args ...any) {
	l.logger.Debugw(msg, args...)
}

func (l *LoggerAdapter) Info(msg string, args ...any) {
	l.logger.Infow(msg, args...)
}

func (l *LoggerAdapter) Warn(msg string, args ...any) {
	l.logger.Warnw(msg, args...)
}

func (l *LoggerAdapter) Error(msg string, args ...any) {
	l.logger.Errorw(msg, args...)
}

func (l *LoggerAdapter) WithField(key string, value any) output.LoggerPort {
	child := l.base.With(zap.Any(key, value))
	return &LoggerAdapter{
		logger: child.Sugar(),
		base:   child,
	}
}

func (l *LoggerAdapter) Close() error {
	return l.base.Sync()
}

func sanitize(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	s = string(result)
	if s == "" {
		return "task"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
