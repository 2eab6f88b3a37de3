package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	paths, err := FindScenarios(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)
}

func TestFindScenarios_File(t *testing.T) {
	paths, err := FindScenarios("scenarios/set_algebra.yaml", "testdata")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("testdata", "scenarios", "set_algebra.yaml")}, paths)
}

func TestFindScenarios_NotFound(t *testing.T) {
	_, err := FindScenarios("missing.yaml", "testdata")
	require.Error(t, err)

	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing.yaml", nf.Path)
	assert.Equal(t, filepath.Join("testdata", "missing.yaml"), nf.ResolvedPath)
}
