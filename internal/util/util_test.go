package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "habitats.csv")
	require.NoError(t, os.WriteFile(file, []byte("Group,Gene,Sample,Habitat\n"), 0644))

	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(file))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing.csv")))

	assert.True(t, ParentDirExists("out.xlsx"))
	assert.True(t, ParentDirExists(filepath.Join(dir, "out.xlsx")))
	assert.False(t, ParentDirExists(filepath.Join(dir, "nope", "out.xlsx")))
}

func TestExt(t *testing.T) {
	assert.Equal(t, "xlsx", Ext("results/Run.XLSX"))
	assert.Equal(t, "db", Ext("a.b.db"))
	assert.Equal(t, "", Ext("noext"))
}
