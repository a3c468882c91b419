package resources

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContainsBundledFiles(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	readme, ok := table.Lookup("/README.txt")
	require.True(t, ok)
	assert.Equal(t, "README.txt", readme.Name())
	assert.Equal(t, int64(len(readme.Data)), readme.Size())
	assert.NotZero(t, readme.Size())

	autorun, ok := table.Lookup("/autorun.inf")
	require.True(t, ok)
	assert.Contains(t, string(autorun.Data), "label=Interplanetary")
}

func TestNewSkipsDirectories(t *testing.T) {
	fsys := fstest.MapFS{
		"r/b.txt":      {Data: []byte("bb")},
		"r/a.txt":      {Data: []byte("a")},
		"r/sub/nested": {Data: []byte("x")},
	}
	table, err := New(fsys, "r")
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	all := table.All()
	assert.Equal(t, "/a.txt", all[0].Path)
	assert.Equal(t, "/b.txt", all[1].Path)

	_, ok := table.Lookup("/sub")
	assert.False(t, ok)
	_, ok = table.Lookup("a.txt")
	assert.False(t, ok, "lookup keys carry the leading separator")
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(fstest.MapFS{}, "missing")
	assert.Error(t, err)
}

func TestNilTable(t *testing.T) {
	var table *Table
	_, ok := table.Lookup("/x")
	assert.False(t, ok)
	assert.Empty(t, table.All())
	assert.Zero(t, table.Len())
}
