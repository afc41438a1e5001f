// Package cliclick injects pointer and keyboard events through the
// cliclick command-line utility. All coordinates are in real pixels.
package cliclick

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

var (
	_ output.PointerPort  = (*Adapter)(nil)
	_ output.KeyboardPort = (*Adapter)(nil)
)

type Config struct {
	// TypingDelayMs is the wait cliclick inserts between injected events,
	// pacing keystrokes so slow UI targets do not drop input.
	TypingDelayMs int
	Logger        output.LoggerPort
}

type Adapter struct {
	binary        string
	typingDelayMs int
	logger        output.LoggerPort
}

// NewAdapter verifies cliclick is installed. A missing binary is a setup
// failure: the session cannot start without input injection.
func NewAdapter(cfg Config) (*Adapter, error) {
	path, err := exec.LookPath("cliclick")
	if err != nil {
		return nil, fmt.Errorf("cliclick not found (brew install cliclick): %w", err)
	}
	if cfg.TypingDelayMs <= 0 {
		cfg.TypingDelayMs = 12
	}
	return &Adapter{
		binary:        path,
		typingDelayMs: cfg.TypingDelayMs,
		logger:        cfg.Logger,
	}, nil
}

func (a *Adapter) Move(ctx context.Context, p entity.Point) error {
	return a.run(ctx, fmt.Sprintf("m:%d,%d", p.X, p.Y))
}

func (a *Adapter) Click(ctx context.Context, button output.MouseButton, clicks int, p *entity.Point) error {
	pos := "."
	if p != nil {
		pos = fmt.Sprintf("%d,%d", p.X, p.Y)
	}

	switch button {
	case output.ButtonLeft:
		if clicks >= 3 {
			return a.run(ctx, "tc:"+pos)
		}
		if clicks == 2 {
			return a.run(ctx, "dc:"+pos)
		}
		return a.run(ctx, "c:"+pos)
	case output.ButtonRight:
		return a.run(ctx, "rc:"+pos)
	case output.ButtonMiddle:
		return fmt.Errorf("cliclick has no middle-button support")
	default:
		return fmt.Errorf("unknown mouse button %q", button)
	}
}

func (a *Adapter) Drag(ctx context.Context, from, to entity.Point) error {
	return a.run(ctx,
		fmt.Sprintf("dd:%d,%d", from.X, from.Y),
		fmt.Sprintf("dm:%d,%d", to.X, to.Y),
		fmt.Sprintf("du:%d,%d", to.X, to.Y),
	)
}

func (a *Adapter) Position(ctx context.Context) (entity.Point, error) {
	out, err := a.output(ctx, "p")
	if err != nil {
		return entity.Point{}, err
	}
	x, y, err := parsePosition(out)
	if err != nil {
		return entity.Point{}, err
	}
	return entity.Point{X: x, Y: y, Space: entity.SpaceReal}, nil
}

func (a *Adapter) PressKey(ctx context.Context, combo string) error {
	args, err := keyComboArgs(combo)
	if err != nil {
		return err
	}
	return a.run(ctx, args...)
}

func (a *Adapter) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("text is required for type")
	}
	return a.run(ctx, "t:"+text)
}

func (a *Adapter) run(ctx context.Context, commands ...string) error {
	_, err := a.output(ctx, commands...)
	return err
}

func (a *Adapter) output(ctx context.Context, commands ...string) (string, error) {
	args := append([]string{"-w", strconv.Itoa(a.typingDelayMs)}, commands...)
	cmd := exec.CommandContext(ctx, a.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("cliclick %s failed: %v: %s",
			strings.Join(commands, " "), err, strings.TrimSpace(string(out)))
	}
	if a.logger != nil {
		a.logger.Debug("cliclick executed", "commands", commands)
	}
	return strings.TrimSpace(string(out)), nil
}

// parsePosition extracts "x,y" from cliclick's p output, tolerating any
// leading label text.
func parsePosition(out string) (int, int, error) {
	fields := strings.FieldsFunc(out, func(r rune) bool {
		return r != '-' && (r < '0' || r > '9')
	})
	nums := make([]int, 0, 2)
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	if len(nums) < 2 {
		return 0, 0, fmt.Errorf("cannot parse cursor position from %q", out)
	}
	return nums[len(nums)-2], nums[len(nums)-1], nil
}

var specialKeys = map[string]string{
	"return":    "return",
	"enter":     "return",
	"esc":       "esc",
	"escape":    "esc",
	"tab":       "tab",
	"space":     "space",
	"delete":    "delete",
	"backspace": "delete",
	"home":      "home",
	"end":       "end",
	"page_up":   "page-up",
	"pageup":    "page-up",
	"page_down": "page-down",
	"pagedown":  "page-down",
	"up":        "arrow-up",
	"down":      "arrow-down",
	"left":      "arrow-left",
	"right":     "arrow-right",
	"f1":        "f1",
	"f2":        "f2",
	"f3":        "f3",
	"f4":        "f4",
	"f5":        "f5",
	"f6":        "f6",
	"f7":        "f7",
	"f8":        "f8",
	"f9":        "f9",
	"f10":       "f10",
	"f11":       "f11",
	"f12":       "f12",
}

var modifierKeys = map[string]string{
	"cmd":     "cmd",
	"command": "cmd",
	"meta":    "cmd",
	"super":   "cmd",
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"fn":      "fn",
}

// keyComboArgs translates a combo like "cmd+shift+4" or "Return" into a
// cliclick command sequence: modifiers down, key, modifiers up.
func keyComboArgs(combo string) ([]string, error) {
	combo = strings.TrimSpace(combo)
	if combo == "" {
		return nil, fmt.Errorf("key combo is required")
	}

	var modifiers []string
	key := ""
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if mod, ok := modifierKeys[part]; ok {
			modifiers = append(modifiers, mod)
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("key combo %q names more than one key", combo)
		}
		key = part
	}

	var keyCmd string
	switch {
	case key == "" && len(modifiers) > 0:
		// Modifier-only chord: press and release.
		mods := strings.Join(modifiers, ",")
		return []string{"kd:" + mods, "ku:" + mods}, nil
	case key == "":
		return nil, fmt.Errorf("key combo %q names no key", combo)
	}

	if special, ok := specialKeys[key]; ok {
		keyCmd = "kp:" + special
	} else if len([]rune(key)) == 1 {
		keyCmd = "t:" + key
	} else {
		return nil, fmt.Errorf("unsupported key %q", key)
	}

	if len(modifiers) == 0 {
		return []string{keyCmd}, nil
	}
	mods := strings.Join(modifiers, ",")
	return []string{"kd:" + mods, keyCmd, "ku:" + mods}, nil
}
