package builddb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/model"
)

func TestFilterToTATree_DropsEntriesOutsideTA(t *testing.T) {
	root := t.TempDir()
	taDir := filepath.Join(root, "ta")
	require.NoError(t, os.MkdirAll(taDir, 0o755))

	entries := []model.CompileEntry{
		{Directory: taDir, File: filepath.Join(taDir, "entry.c")},
		{Directory: root, File: filepath.Join(root, "host", "main.c")},
	}

	filtered := filterToTATree(entries, taDir)
	require.Len(t, filtered, 1)
	assert.Equal(t, filepath.Join(taDir, "entry.c"), filtered[0].File)
}

func TestMissingSourceFiles_FindsUnaccountedForFiles(t *testing.T) {
	root := t.TempDir()
	have := filepath.Join(root, "have.c")
	missing := filepath.Join(root, "missing.c")

	entries := []model.CompileEntry{{Directory: root, File: have}}
	result := missingSourceFiles(entries, []string{have, missing})
	require.Len(t, result, 1)
	assert.Equal(t, missing, result[0])
}

func TestSynthesizeEntry_BuildsIncludeFlags(t *testing.T) {
	root := t.TempDir()
	opts := Options{ProjectDir: root, DevkitIncludeDir: "/opt/optee/include"}
	file := filepath.Join(root, "ta", "entry.c")

	entry := synthesizeEntry(file, opts)
	assert.Equal(t, file, entry.File)
	assert.Contains(t, entry.Arguments, "-I"+filepath.Join(root, "ta", "include"))
	assert.Contains(t, entry.Arguments, "-I"+filepath.Join(root, "ta"))
	assert.Contains(t, entry.Arguments, "-I/opt/optee/include")
	assert.Contains(t, entry.Arguments, "-c")
	assert.Contains(t, entry.Arguments, file)
}

func TestRemoveStaleDepFiles_DeletesOnlyDotD(t *testing.T) {
	dir := t.TempDir()
	depFile := filepath.Join(dir, "entry.d")
	srcFile := filepath.Join(dir, "entry.c")
	require.NoError(t, os.WriteFile(depFile, []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(srcFile, []byte("int main(){}"), 0o644))

	removed, err := removeStaleDepFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, depFile)
	assert.FileExists(t, srcFile)
}

func TestRemoveStaleDepFiles_MissingDirIsNotAnError(t *testing.T) {
	removed, err := removeStaleDepFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestFindCSourceFiles_SkipsCMakeBuildDir(t *testing.T) {
	taDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(taDir, "entry.c"), []byte(""), 0o644))
	buildDir := filepath.Join(taDir, ".teeflow-cmake-build")
	require.NoError(t, os.MkdirAll(buildDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "generated.c"), []byte(""), 0o644))

	files, err := findCSourceFiles(taDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(taDir, "entry.c"), files[0])
}
