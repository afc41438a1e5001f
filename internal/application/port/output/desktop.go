package output

import (
	"context"
	"image"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// PointerPort injects pointer events. All coordinates are in real
// (hardware) space; the caller is responsible for any transformation.
type PointerPort interface {
	Move(ctx context.Context, p entity.Point) error
	Click(ctx context.Context, button MouseButton, clicks int, p *entity.Point) error
	Drag(ctx context.Context, from, to entity.Point) error
	Position(ctx context.Context) (entity.Point, error)
}

// KeyboardPort injects keyboard events.
type KeyboardPort interface {
	PressKey(ctx context.Context, combo string) error
	TypeText(ctx context.Context, text string) error
}

// ScreenPort captures the real display.
type ScreenPort interface {
	Capture(ctx context.Context) (image.Image, error)
}
