package entity

type ToolName string

const (
	ToolComputer ToolName = "computer"
	ToolBash     ToolName = "bash"
	ToolEditor   ToolName = "str_replace_editor"
)

func (t ToolName) String() string {
	return string(t)
}

// Action is the per-tool operation named in a tool call's parameters.
type Action string

const (
	ActionMouseMove      Action = "mouse_move"
	ActionLeftClick      Action = "left_click"
	ActionRightClick     Action = "right_click"
	ActionMiddleClick    Action = "middle_click"
	ActionDoubleClick    Action = "double_click"
	ActionLeftClickDrag  Action = "left_click_drag"
	ActionKey            Action = "key"
	ActionType           Action = "type"
	ActionScreenshot     Action = "screenshot"
	ActionCursorPosition Action = "cursor_position"
	ActionScroll         Action = "scroll"
	ActionWait           Action = "wait"

	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionReplace  Action = "str_replace"
	ActionInsert   Action = "insert"
	ActionUndoEdit Action = "undo_edit"
)
