package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medright/mac-computer-use-v1/internal/domain/entity"
)

func runEditor(t *testing.T, e *EditorTool, input editorInput) (*entity.ToolResult, error) {
	t.Helper()
	args, err := json.Marshal(input)
	require.NoError(t, err)
	return e.Execute(context.Background(), string(args))
}

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEditorToolRejectsRelativePath(t *testing.T) {
	e := NewEditorTool()
	_, err := runEditor(t, e, editorInput{Command: "view", Path: "relative/file.txt"})
	assert.ErrorContains(t, err, "absolute")
}

func TestEditorToolViewNumbersLines(t *testing.T) {
	e := NewEditorTool()
	path := writeTestFile(t, "alpha\nbeta\ngamma")

	result, err := runEditor(t, e, editorInput{Command: "view", Path: path})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "     1\talpha")
	assert.Contains(t, result.Output, "     3\tgamma")
}

func TestEditorToolViewRange(t *testing.T) {
	e := NewEditorTool()
	path := writeTestFile(t, "one\ntwo\nthree\nfour")

	result, err := runEditor(t, e, editorInput{Command: "view", Path: path, ViewRange: []int{2, 3}})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "     2\ttwo")
	assert.Contains(t, result.Output, "     3\tthree")
	assert.NotContains(t, result.Output, "one")
	assert.NotContains(t, result.Output, "four")

	// -1 extends to the last line.
	result, err = runEditor(t, e, editorInput{Command: "view", Path: path, ViewRange: []int{3, -1}})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "     4\tfour")

	_, err = runEditor(t, e, editorInput{Command: "view", Path: path, ViewRange: []int{0, 2}})
	assert.Error(t, err)
}

func TestEditorToolViewDirectory(t *testing.T) {
	e := NewEditorTool()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deep", "deeper"), 0o755))

	result, err := runEditor(t, e, editorInput{Command: "view", Path: dir})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "visible.txt")
	assert.Contains(t, result.Output, "sub")
	assert.NotContains(t, result.Output, ".hidden")
	assert.NotContains(t, result.Output, "deeper")
}

func TestEditorToolCreate(t *testing.T) {
	e := NewEditorTool()
	path := filepath.Join(t.TempDir(), "new.txt")

	_, err := runEditor(t, e, editorInput{Command: "create", Path: path, FileText: strPtr("content\n")})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content\n", string(data))

	// Refuses to clobber without overwrite.
	_, err = runEditor(t, e, editorInput{Command: "create", Path: path, FileText: strPtr("other")})
	assert.ErrorContains(t, err, "already exists")

	_, err = runEditor(t, e, editorInput{Command: "create", Path: path, FileText: strPtr("other"), Overwrite: true})
	require.NoError(t, err)
	data, _ = os.ReadFile(path)
	assert.Equal(t, "other", string(data))
}

func TestEditorToolCreateEmptyFile(t *testing.T) {
	e := NewEditorTool()
	path := filepath.Join(t.TempDir(), "empty.txt")

	_, err := runEditor(t, e, editorInput{Command: "create", Path: path, FileText: strPtr("")})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	// Omitting the field entirely is still an error.
	_, err = runEditor(t, e, editorInput{Command: "create", Path: filepath.Join(t.TempDir(), "x.txt")})
	assert.ErrorContains(t, err, "file_text is required")
}

func TestEditorToolStrReplace(t *testing.T) {
	e := NewEditorTool()
	path := writeTestFile(t, "func main() {\n\tfmt.Println(\"old\")\n}\n")

	_, err := runEditor(t, e, editorInput{
		Command: "str_replace", Path: path,
		OldStr: `fmt.Println("old")`, NewStr: `fmt.Println("new")`,
	})
	require.NoError(t, err)

	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), `"new"`)
	assert.NotContains(t, string(data), `"old"`)
}

func TestEditorToolStrReplaceRequiresUniqueMatch(t *testing.T) {
	e := NewEditorTool()

	path := writeTestFile(t, "aaa\nbbb\naaa\n")
	_, err := runEditor(t, e, editorInput{Command: "str_replace", Path: path, OldStr: "aaa", NewStr: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 times")
	assert.Contains(t, err.Error(), "1, 3")

	_, err = runEditor(t, e, editorInput{Command: "str_replace", Path: path, OldStr: "missing", NewStr: "x"})
	assert.ErrorContains(t, err, "not found")

	// A failed replace leaves the file untouched.
	data, _ := os.ReadFile(path)
	assert.Equal(t, "aaa\nbbb\naaa\n", string(data))
}

func TestEditorToolStrReplaceReportsMultilineMatches(t *testing.T) {
	e := NewEditorTool()
	path := writeTestFile(t, "aaa\nbbb\naaa\nbbb\n")

	_, err := runEditor(t, e, editorInput{Command: "str_replace", Path: path, OldStr: "aaa\nbbb", NewStr: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 times")
	assert.Contains(t, err.Error(), "in lines 1, 3")
}

func TestEditorToolInsert(t *testing.T) {
	e := NewEditorTool()
	path := writeTestFile(t, "one\ntwo\nthree")

	_, err := runEditor(t, e, editorInput{Command: "insert", Path: path, InsertLine: intPtr(1), NewStr: "inserted"})
	require.NoError(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "one\ninserted\ntwo\nthree", string(data))

	_, err = runEditor(t, e, editorInput{Command: "insert", Path: path, InsertLine: intPtr(99), NewStr: "x"})
	assert.ErrorContains(t, err, "out of range")
}

func TestEditorToolUndoRestoresExactContent(t *testing.T) {
	e := NewEditorTool()
	original := "line one\nline two\n"
	path := writeTestFile(t, original)

	_, err := runEditor(t, e, editorInput{Command: "str_replace", Path: path, OldStr: "line two", NewStr: "changed"})
	require.NoError(t, err)

	_, err = runEditor(t, e, editorInput{Command: "undo_edit", Path: path})
	require.NoError(t, err)

	data, _ := os.ReadFile(path)
	assert.Equal(t, original, string(data))

	// History is consumed.
	_, err = runEditor(t, e, editorInput{Command: "undo_edit", Path: path})
	assert.ErrorContains(t, err, "no edit history")
}

func TestEditorToolUndoDepthIsBounded(t *testing.T) {
	e := NewEditorTool()
	path := writeTestFile(t, "v0")

	for i := 1; i <= maxUndoDepth+3; i++ {
		_, err := runEditor(t, e, editorInput{
			Command: "create", Path: path, Overwrite: true,
			FileText: strPtr("v" + string(rune('0'+i%10))),
		})
		require.NoError(t, err)
	}

	undone := 0
	for {
		_, err := runEditor(t, e, editorInput{Command: "undo_edit", Path: path})
		if err != nil {
			break
		}
		undone++
	}
	assert.Equal(t, maxUndoDepth, undone)
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
