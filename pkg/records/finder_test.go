package records

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFindRecordFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.csv":             "author\nB\n",
		"a.JSON":            `[{"author":"A"}]`,
		"notes.txt":         "ignored",
		".hidden.csv":       "author\nH\n",
		".git/objects.csv":  "author\nG\n",
		"2024/december.csv": "author\nD\n",
	})

	files, err := FindRecordFiles(dir)
	require.NoError(t, err)

	rel := make([]string, len(files))
	for i, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}
	assert.Equal(t, []string{"2024/december.csv", "a.JSON", "b.csv"}, rel)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.csv":  "author,translator\nA,T\n",
		"b.json": `[{"author":"B","translator":"T"}]`,
	})

	recs, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Fields["author"])
	assert.Equal(t, "B", recs[1].Fields["author"])

	single, err := Load(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.Len(t, single, 1)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

func TestIsRecordFile(t *testing.T) {
	assert.True(t, IsRecordFile("x.csv"))
	assert.True(t, IsRecordFile("x.Json"))
	assert.False(t, IsRecordFile("x.tsv"))
}
