package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/display"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

var _ output.ToolPort = (*ComputerTool)(nil)

// ComputerTool executes pointer, keyboard and screenshot actions against
// the real display. Spatial parameters arrive in virtual coordinates and
// are mapped to real ones before any native call.
type ComputerTool struct {
	transform *display.Transformer
	pointer   output.PointerPort
	keyboard  output.KeyboardPort
	screen    output.ScreenPort
	logger    output.LoggerPort
}

func NewComputerTool(
	transform *display.Transformer,
	pointer output.PointerPort,
	keyboard output.KeyboardPort,
	screen output.ScreenPort,
	logger output.LoggerPort,
) *ComputerTool {
	return &ComputerTool{
		transform: transform,
		pointer:   pointer,
		keyboard:  keyboard,
		screen:    screen,
		logger:    logger,
	}
}

type computerInput struct {
	Action          string `json:"action"`
	Coordinate      []int  `json:"coordinate,omitempty"`
	StartCoordinate []int  `json:"start_coordinate,omitempty"`
	Text            string `json:"text,omitempty"`
	DurationMs      int    `json:"duration_ms,omitempty"`
	ScrollDirection string `json:"scroll_direction,omitempty"`
	ScrollAmount    int    `json:"scroll_amount,omitempty"`
}

func (t *ComputerTool) Name() entity.ToolName {
	return entity.ToolComputer
}

func (t *ComputerTool) Description() string {
	return "Controls the desktop with mouse and keyboard actions and captures screenshots. Coordinates are in the virtual resolution reported with every screenshot."
}

func (t *ComputerTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type": "string",
				"enum": []string{
					"mouse_move", "left_click", "right_click", "middle_click",
					"double_click", "left_click_drag", "key", "type",
					"screenshot", "cursor_position", "scroll", "wait",
				},
				"description": "Action to perform.",
			},
			"coordinate": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "integer"},
				"minItems":    2,
				"maxItems":    2,
				"description": "Target [x, y] in virtual pixels. For left_click_drag this is the drag end point.",
			},
			"start_coordinate": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "integer"},
				"minItems":    2,
				"maxItems":    2,
				"description": "Drag start [x, y] in virtual pixels.",
			},
			"text": map[string]interface{}{
				"type":        "string",
				"description": "Text for type, or a key chord like 'cmd+shift+4' for key.",
			},
			"duration_ms": map[string]interface{}{
				"type":        "integer",
				"minimum":     0,
				"description": "Wait duration in milliseconds.",
			},
			"scroll_direction": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"up", "down", "left", "right"},
				"description": "Direction for scroll.",
			},
			"scroll_amount": map[string]interface{}{
				"type":        "integer",
				"minimum":     1,
				"description": "How far to scroll, in key steps.",
			},
		},
		"required": []string{"action"},
	}
}

func (t *ComputerTool) Execute(ctx context.Context, arguments string) (*entity.ToolResult, error) {
	var input computerInput
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return nil, fmt.Errorf("invalid input format: %w", err)
	}

	action := entity.Action(input.Action)
	switch action {
	case entity.ActionMouseMove:
		p, err := t.realPoint(input.Coordinate, "coordinate")
		if err != nil {
			return nil, err
		}
		if err := t.pointer.Move(ctx, p); err != nil {
			return nil, err
		}
		return &entity.ToolResult{
			Output: fmt.Sprintf("Moved cursor to (%d, %d)", input.Coordinate[0], input.Coordinate[1]),
		}, nil

	case entity.ActionLeftClick, entity.ActionRightClick,
		entity.ActionMiddleClick, entity.ActionDoubleClick:
		return t.click(ctx, action, input.Coordinate)

	case entity.ActionLeftClickDrag:
		from, err := t.realPoint(input.StartCoordinate, "start_coordinate")
		if err != nil {
			return nil, err
		}
		to, err := t.realPoint(input.Coordinate, "coordinate")
		if err != nil {
			return nil, err
		}
		if err := t.pointer.Drag(ctx, from, to); err != nil {
			return nil, err
		}
		return &entity.ToolResult{Output: "Drag completed"}, nil

	case entity.ActionKey:
		if input.Text == "" {
			return nil, fmt.Errorf("text is required for key")
		}
		if err := t.keyboard.PressKey(ctx, input.Text); err != nil {
			return nil, err
		}
		return &entity.ToolResult{Output: fmt.Sprintf("Pressed %s", input.Text)}, nil

	case entity.ActionType:
		if input.Text == "" {
			return nil, fmt.Errorf("text is required for type")
		}
		if err := t.keyboard.TypeText(ctx, input.Text); err != nil {
			return nil, err
		}
		return &entity.ToolResult{Output: fmt.Sprintf("Typed %d characters", len(input.Text))}, nil

	case entity.ActionScreenshot:
		return t.screenshot(ctx)

	case entity.ActionCursorPosition:
		real, err := t.pointer.Position(ctx)
		if err != nil {
			return nil, err
		}
		v := t.transform.ToVirtual(real)
		return &entity.ToolResult{Output: fmt.Sprintf("X=%d,Y=%d", v.X, v.Y)}, nil

	case entity.ActionScroll:
		return t.scroll(ctx, input)

	case entity.ActionWait:
		wait := time.Duration(input.DurationMs) * time.Millisecond
		if wait <= 0 {
			wait = 500 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		return &entity.ToolResult{Output: fmt.Sprintf("Waited %s", wait)}, nil

	default:
		return nil, fmt.Errorf("unknown action %q", input.Action)
	}
}

func (t *ComputerTool) click(ctx context.Context, action entity.Action, coordinate []int) (*entity.ToolResult, error) {
	var at *entity.Point
	if len(coordinate) > 0 {
		p, err := t.realPoint(coordinate, "coordinate")
		if err != nil {
			return nil, err
		}
		at = &p
	}

	button := output.ButtonLeft
	clicks := 1
	switch action {
	case entity.ActionRightClick:
		button = output.ButtonRight
	case entity.ActionMiddleClick:
		button = output.ButtonMiddle
	case entity.ActionDoubleClick:
		clicks = 2
	}

	if err := t.pointer.Click(ctx, button, clicks, at); err != nil {
		return nil, err
	}
	return &entity.ToolResult{Output: fmt.Sprintf("Performed %s", action)}, nil
}

// scroll moves the pointer to the target (when given) and scrolls with
// arrow key presses, since the input backend has no wheel events.
func (t *ComputerTool) scroll(ctx context.Context, input computerInput) (*entity.ToolResult, error) {
	key, ok := map[string]string{
		"up": "up", "down": "down", "left": "left", "right": "right",
	}[input.ScrollDirection]
	if !ok {
		return nil, fmt.Errorf("scroll_direction must be up, down, left or right")
	}

	if len(input.Coordinate) > 0 {
		p, err := t.realPoint(input.Coordinate, "coordinate")
		if err != nil {
			return nil, err
		}
		if err := t.pointer.Move(ctx, p); err != nil {
			return nil, err
		}
	}

	amount := input.ScrollAmount
	if amount <= 0 {
		amount = 3
	}
	if amount > 30 {
		amount = 30
	}
	for i := 0; i < amount; i++ {
		if err := t.keyboard.PressKey(ctx, key); err != nil {
			return nil, err
		}
	}
	return &entity.ToolResult{
		Output: fmt.Sprintf("Scrolled %s %d steps", input.ScrollDirection, amount),
	}, nil
}

func (t *ComputerTool) screenshot(ctx context.Context) (*entity.ToolResult, error) {
	img, err := t.screen.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	scaled := t.transform.ScaleImage(img)
	b64, err := display.EncodePNGBase64(scaled)
	if err != nil {
		return nil, err
	}

	if t.logger != nil {
		t.logger.Debug("screenshot captured",
			"realWidth", img.Bounds().Dx(), "realHeight", img.Bounds().Dy(),
			"virtualWidth", scaled.Bounds().Dx(), "virtualHeight", scaled.Bounds().Dy())
	}
	return &entity.ToolResult{Base64Image: b64}, nil
}

// realPoint validates a two-element coordinate and maps it to real space.
func (t *ComputerTool) realPoint(coordinate []int, field string) (entity.Point, error) {
	if len(coordinate) != 2 {
		return entity.Point{}, fmt.Errorf("%s must be [x, y]", field)
	}
	virtual := entity.Point{X: coordinate[0], Y: coordinate[1], Space: entity.SpaceVirtual}
	return t.transform.ToReal(virtual), nil
}
