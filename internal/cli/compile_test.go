package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linked/internal/compiler"
)

const shelfViews = `
package views

namespaces: ex: "http://example.org/"

view: Shelf: {
	uri: "ex:shelf"
	generator: predicate: "ex:holds"
}

view: Longest: {
	uri:   "ex:longest"
	query: "SELECT ?id WHERE { ?id ex:pages ?n }"
	order: "DESC(?n)"
	limit: 1
}
`

func writeViews(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views.cue"), []byte(src), 0644))
	return dir
}

func TestCompileViews(t *testing.T) {
	dir := writeViews(t, shelfViews)

	out, err := execute(t, "compile", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 view(s) from 1 file(s)")
	assert.Contains(t, out, "Shelf (hub) ex:shelf")
	assert.Contains(t, out, "query: SELECT ?id WHERE { <http://example.org/shelf> <http://example.org/holds> ?id . }")
	assert.Contains(t, out, "Longest (read-only) ex:longest")
	assert.Contains(t, out, "ORDER BY DESC(?n) LIMIT 1")
	assert.Contains(t, out, "sql:   SELECT")
}

func TestCompileViewsJSON(t *testing.T) {
	dir := writeViews(t, shelfViews)

	out, err := execute(t, "--format", "json", "compile", dir)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.FileCount)
	assert.Equal(t, "http://example.org/", resp.Data.Namespaces["ex"])
	require.Len(t, resp.Data.Views, 2)

	kinds := map[string]string{}
	for _, v := range resp.Data.Views {
		kinds[v.Name] = v.Kind
		assert.NotEmpty(t, v.SQL, v.Name)
	}
	assert.Equal(t, map[string]string{"Shelf": "hub", "Longest": "read-only"}, kinds)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := writeViews(t, shelfViews)
	dest := filepath.Join(t.TempDir(), "views.json")

	out, err := execute(t, "compile", dir, "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Views, 2)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := execute(t, "compile", "/nonexistent/views")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, compiler.ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(t, "compile", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, compiler.ErrCodeNoFiles)
}

func TestCompileDuplicateURI(t *testing.T) {
	dir := writeViews(t, `
package views

namespaces: ex: "http://example.org/"

view: A: {uri: "ex:shelf", generator: predicate: "ex:holds"}
view: B: {uri: "ex:shelf", generator: predicate: "ex:keeps"}
`)

	out, err := execute(t, "--format", "json", "compile", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrDuplicateURI, resp.Error.Code)
}

func TestCompileVerboseOutput(t *testing.T) {
	dir := writeViews(t, shelfViews)

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"-v", "--format", "json", "compile", dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, errOut.String(), "Found 1 CUE file(s)")
	assert.Contains(t, errOut.String(), "Compiling view: Shelf")
	assert.NotContains(t, out.String(), "Compiling view")
}

func TestParseCompileError(t *testing.T) {
	code, msg := parseCompileError(compiler.ValidationError{View: "A", Field: "uri", Message: "duplicate", Code: compiler.ErrDuplicateURI})
	assert.Equal(t, compiler.ErrDuplicateURI, code)
	assert.Equal(t, "view A: uri: duplicate", msg)

	code, msg = parseCompileError(&compiler.LoadError{Code: compiler.ErrCodeNoFiles, Message: "no CUE files"})
	assert.Equal(t, compiler.ErrCodeNoFiles, code)
	assert.Equal(t, "no CUE files", msg)

	code, msg = parseCompileError(&compiler.CompileError{Field: "limit", Message: "must not be negative"})
	assert.Equal(t, ErrCodeInvalid, code)
	assert.Equal(t, "limit: must not be negative", msg)
}
