package entity

// ToolResult is the raw outcome of executing one tool action. The
// dispatcher reformats it into protocol blocks; it is never persisted.
type ToolResult struct {
	Output      string
	Base64Image string
	System      string
	Error       string
}

func (r *ToolResult) IsError() bool {
	return r != nil && r.Error != ""
}
