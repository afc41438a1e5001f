package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/medright/mac-computer-use-v1/internal/application/port/output"
	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

var _ output.ToolPort = (*EditorTool)(nil)

const (
	maxUndoDepth     = 8
	maxViewChars     = 16000
	snippetLines     = 4
	truncatedMessage = "<response clipped>"
)

// EditorTool provides view, create, str_replace, insert and undo_edit
// operations over files. Edit history is kept in memory per path, bounded
// to the most recent edits.
type EditorTool struct {
	mu      sync.Mutex
	history map[string][]string
}

func NewEditorTool() *EditorTool {
	return &EditorTool{history: make(map[string][]string)}
}

type editorInput struct {
	Command    string  `json:"command"`
	Path       string  `json:"path"`
	FileText   *string `json:"file_text,omitempty"`
	OldStr     string  `json:"old_str,omitempty"`
	NewStr     string  `json:"new_str,omitempty"`
	InsertLine *int    `json:"insert_line,omitempty"`
	ViewRange  []int   `json:"view_range,omitempty"`
	Overwrite  bool    `json:"overwrite,omitempty"`
}

func (t *EditorTool) Name() entity.ToolName {
	return entity.ToolEditor
}

func (t *EditorTool) Description() string {
	return "Views, creates and edits files. str_replace substitutes a unique occurrence, insert adds text after a line, undo_edit reverts the last edit to a file."
}

func (t *EditorTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"view", "create", "str_replace", "insert", "undo_edit"},
				"description": "Operation to perform.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Absolute path to the file or directory.",
			},
			"file_text": map[string]interface{}{
				"type":        "string",
				"description": "Full content for create.",
			},
			"old_str": map[string]interface{}{
				"type":        "string",
				"description": "Exact text to replace. Must occur exactly once in the file.",
			},
			"new_str": map[string]interface{}{
				"type":        "string",
				"description": "Replacement text for str_replace, or the text to insert for insert.",
			},
			"insert_line": map[string]interface{}{
				"type":        "integer",
				"minimum":     0,
				"description": "Line number after which to insert. 0 inserts at the top.",
			},
			"view_range": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "integer"},
				"minItems":    2,
				"maxItems":    2,
				"description": "Line range [start, end] to view. -1 as end means to the last line.",
			},
			"overwrite": map[string]interface{}{
				"type":        "boolean",
				"description": "Allow create to replace an existing file.",
			},
		},
		"required": []string{"command", "path"},
	}
}

func (t *EditorTool) Execute(ctx context.Context, arguments string) (*entity.ToolResult, error) {
	var input editorInput
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return nil, fmt.Errorf("invalid input format: %w", err)
	}

	if !filepath.IsAbs(input.Path) {
		return nil, fmt.Errorf("path must be absolute, got %q", input.Path)
	}

	switch entity.Action(input.Command) {
	case entity.ActionView:
		return t.view(input)
	case entity.ActionCreate:
		return t.create(input)
	case entity.ActionReplace:
		return t.strReplace(input)
	case entity.ActionInsert:
		return t.insert(input)
	case entity.ActionUndoEdit:
		return t.undoEdit(input)
	default:
		return nil, fmt.Errorf("unknown command %q", input.Command)
	}
}

func (t *EditorTool) view(input editorInput) (*entity.ToolResult, error) {
	info, err := os.Stat(input.Path)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", input.Path)
	}

	if info.IsDir() {
		if len(input.ViewRange) > 0 {
			return nil, fmt.Errorf("view_range is not allowed for directories")
		}
		listing, err := listDirectory(input.Path)
		if err != nil {
			return nil, err
		}
		return &entity.ToolResult{
			Output: fmt.Sprintf("Files and directories up to 2 levels deep in %s, excluding hidden items:\n%s", input.Path, listing),
		}, nil
	}

	data, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input.Path, err)
	}

	content := string(data)
	startLine := 1
	if len(input.ViewRange) > 0 {
		if len(input.ViewRange) != 2 {
			return nil, fmt.Errorf("view_range must be [start, end]")
		}
		lines := strings.Split(content, "\n")
		start, end := input.ViewRange[0], input.ViewRange[1]
		if start < 1 || start > len(lines) {
			return nil, fmt.Errorf("view_range start %d is out of range [1, %d]", start, len(lines))
		}
		if end == -1 {
			end = len(lines)
		}
		if end < start || end > len(lines) {
			return nil, fmt.Errorf("view_range end %d is out of range [%d, %d]", end, start, len(lines))
		}
		content = strings.Join(lines[start-1:end], "\n")
		startLine = start
	}

	return &entity.ToolResult{
		Output: numberedOutput(content, input.Path, startLine),
	}, nil
}

func (t *EditorTool) create(input editorInput) (*entity.ToolResult, error) {
	// Empty content is a valid file; only a missing field is an error.
	if input.FileText == nil {
		return nil, fmt.Errorf("file_text is required for create")
	}
	if _, err := os.Stat(input.Path); err == nil && !input.Overwrite {
		return nil, fmt.Errorf("file already exists: %s. Use overwrite to replace it", input.Path)
	}

	if err := os.WriteFile(input.Path, []byte(*input.FileText), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", input.Path, err)
	}
	t.pushHistory(input.Path, *input.FileText)
	return &entity.ToolResult{Output: fmt.Sprintf("File created successfully at: %s", input.Path)}, nil
}

func (t *EditorTool) strReplace(input editorInput) (*entity.ToolResult, error) {
	if input.OldStr == "" {
		return nil, fmt.Errorf("old_str is required for str_replace")
	}

	data, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input.Path, err)
	}
	content := string(data)

	count := strings.Count(content, input.OldStr)
	switch {
	case count == 0:
		return nil, fmt.Errorf("old_str was not found verbatim in %s", input.Path)
	case count > 1:
		// Locate by byte offset so matches spanning lines are reported too.
		var lines []string
		for start := 0; ; {
			i := strings.Index(content[start:], input.OldStr)
			if i < 0 {
				break
			}
			at := start + i
			lines = append(lines, fmt.Sprintf("%d", strings.Count(content[:at], "\n")+1))
			start = at + len(input.OldStr)
		}
		return nil, fmt.Errorf("old_str appears %d times in %s, in lines %s. It must be unique", count, input.Path, strings.Join(lines, ", "))
	}

	updated := strings.Replace(content, input.OldStr, input.NewStr, 1)
	if err := os.WriteFile(input.Path, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", input.Path, err)
	}
	t.pushHistory(input.Path, content)

	return &entity.ToolResult{
		Output: fmt.Sprintf("The file %s has been edited.\n%s\nReview the change and edit again if needed.",
			input.Path, t.editSnippet(updated, input.NewStr, content, input.OldStr, input.Path)),
	}, nil
}

func (t *EditorTool) insert(input editorInput) (*entity.ToolResult, error) {
	if input.InsertLine == nil {
		return nil, fmt.Errorf("insert_line is required for insert")
	}
	if input.NewStr == "" {
		return nil, fmt.Errorf("new_str is required for insert")
	}

	data, err := os.ReadFile(input.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", input.Path, err)
	}
	content := string(data)
	lines := strings.Split(content, "\n")

	at := *input.InsertLine
	if at < 0 || at > len(lines) {
		return nil, fmt.Errorf("insert_line %d is out of range [0, %d]", at, len(lines))
	}

	inserted := strings.Split(input.NewStr, "\n")
	updated := make([]string, 0, len(lines)+len(inserted))
	updated = append(updated, lines[:at]...)
	updated = append(updated, inserted...)
	updated = append(updated, lines[at:]...)

	if err := os.WriteFile(input.Path, []byte(strings.Join(updated, "\n")), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", input.Path, err)
	}
	t.pushHistory(input.Path, content)

	snippetStart := at - snippetLines
	if snippetStart < 0 {
		snippetStart = 0
	}
	snippetEnd := at + len(inserted) + snippetLines
	if snippetEnd > len(updated) {
		snippetEnd = len(updated)
	}
	snippet := strings.Join(updated[snippetStart:snippetEnd], "\n")

	return &entity.ToolResult{
		Output: fmt.Sprintf("The file %s has been edited.\n%s\nReview the change and edit again if needed.",
			input.Path, numberedOutput(snippet, "a snippet of "+input.Path, snippetStart+1)),
	}, nil
}

func (t *EditorTool) undoEdit(input editorInput) (*entity.ToolResult, error) {
	previous, ok := t.popHistory(input.Path)
	if !ok {
		return nil, fmt.Errorf("no edit history found for %s", input.Path)
	}
	if err := os.WriteFile(input.Path, []byte(previous), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", input.Path, err)
	}
	return &entity.ToolResult{
		Output: fmt.Sprintf("Last edit to %s undone successfully.\n%s", input.Path, numberedOutput(previous, input.Path, 1)),
	}, nil
}

func (t *EditorTool) pushHistory(path, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stack := append(t.history[path], content)
	if len(stack) > maxUndoDepth {
		stack = stack[len(stack)-maxUndoDepth:]
	}
	t.history[path] = stack
}

func (t *EditorTool) popHistory(path string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stack := t.history[path]
	if len(stack) == 0 {
		return "", false
	}
	last := stack[len(stack)-1]
	t.history[path] = stack[:len(stack)-1]
	return last, true
}

// editSnippet renders the lines around the replaced region of the updated file.
func (t *EditorTool) editSnippet(updated, newStr, original, oldStr, path string) string {
	before := strings.Count(strings.Split(original, oldStr)[0], "\n")
	start := before - snippetLines
	if start < 0 {
		start = 0
	}
	end := before + snippetLines + strings.Count(newStr, "\n") + 1

	lines := strings.Split(updated, "\n")
	if end > len(lines) {
		end = len(lines)
	}
	return numberedOutput(strings.Join(lines[start:end], "\n"), "a snippet of "+path, start+1)
}

// numberedOutput renders content cat -n style with tabs expanded.
func numberedOutput(content, label string, startLine int) string {
	if len(content) > maxViewChars {
		content = content[:maxViewChars] + "\n" + truncatedMessage
	}
	content = strings.ReplaceAll(content, "\t", "        ")

	var b strings.Builder
	fmt.Fprintf(&b, "Here's the result of running `cat -n` on %s:\n", label)
	for i, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%6d\t%s\n", startLine+i, line)
	}
	return b.String()
}

// listDirectory walks two levels deep, skipping hidden entries.
func listDirectory(root string) (string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if strings.Count(rel, string(filepath.Separator)) >= 2 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			rel += string(filepath.Separator)
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", root, err)
	}
	sort.Strings(paths)
	return strings.Join(paths, "\n"), nil
}
