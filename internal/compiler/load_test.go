package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const librarySource = `
namespaces: {
	ex: "http://example.org/"
}

view: Shelf: {
	uri: "ex:shelf"
	generator: {predicate: "ex:holds"}
}

view: Authors: {
	query: "{ ?id a ex:Author }"
	order: "?id"
}
`

func TestLoadSource(t *testing.T) {
	decls, errs := LoadSource("library.cue", librarySource, LoadModeCollectAll)
	require.Empty(t, errs)

	assert.Equal(t, map[string]string{"ex": "http://example.org/"}, decls.Namespaces)
	require.Len(t, decls.Views, 2)
	assert.Equal(t, "Authors", decls.Views[0].Name, "views are sorted by name")
	assert.Equal(t, "Shelf", decls.Views[1].Name)
	assert.Equal(t, 1, decls.FileCount)
}

func TestLoadSource_CollectsAllErrors(t *testing.T) {
	src := `
view: A: {limit: 1}
view: B: {query: "{ ?id ex:p ?o }"}
view: C: {generator: {}}
`
	decls, errs := LoadSource("bad.cue", src, LoadModeCollectAll)
	assert.Len(t, errs, 2)
	require.Len(t, decls.Views, 1)
	assert.Equal(t, "B", decls.Views[0].Name)

	_, errs = LoadSource("bad.cue", src, LoadModeFailFast)
	assert.Len(t, errs, 1)

	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.True(t, le.Pos.IsValid())
}

func TestLoadSource_Empty(t *testing.T) {
	_, errs := LoadSource("empty.cue", `other: 1`, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no namespaces or views")
}

func TestLoadSource_BuildError(t *testing.T) {
	_, errs := LoadSource("broken.cue", `view: {`, LoadModeCollectAll)
	require.Len(t, errs, 1)

	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
}

func TestLoadDir_Errors(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"), LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNotFound)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "README"), []byte("x"), 0o644))
	_, errs = LoadDir(empty, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoFiles)

	file := filepath.Join(empty, "README")
	_, errs = LoadDir(file, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "not a directory")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("x: 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.cue"), []byte("y: 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("z"), 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
