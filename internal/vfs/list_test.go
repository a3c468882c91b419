package vfs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wforney/net-ipfs-mount/internal/store"
)

func names(entries []FileInformation) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestList_Root(t *testing.T) {
	st := newFakeStore()
	st.pinErr = errStoreDown
	f, _ := testFS(st, '\\')

	entries, err := f.FindFiles(context.Background(), `\`, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ipfs", "ipns", "README.txt", "autorun.inf"}, names(entries))
	assert.True(t, entries[0].IsDirectory)
	assert.True(t, entries[1].IsDirectory)
	assert.False(t, entries[2].IsDirectory)
	assert.Equal(t, int64(len("hello world")), entries[2].Size)
	assert.Empty(t, st.calls(), "root listing does not depend on the store")
}

func TestList_IPNSIsEmpty(t *testing.T) {
	st := newFakeStore()
	st.pins = []string{"QmA"}
	st.addFile("QmA", "QmA", []byte("a"))
	f, _ := testFS(st, '/')

	entries, err := f.FindFiles(context.Background(), "/ipns", nil)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestList_PinnedSkipsUnresolvable(t *testing.T) {
	st := newFakeStore()
	st.pins = []string{"A", "B"}
	st.addFile("A", "A", make([]byte, 100))
	f, _ := testFS(st, '\\')

	entries, err := f.FindFiles(context.Background(), `\ipfs`, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Name)
	assert.Equal(t, int64(100), entries[0].Size)
	assert.False(t, entries[0].IsDirectory)
	assert.ElementsMatch(t, []string{"A", "B"}, st.calls())
}

func TestList_PinnedKeepsOrder(t *testing.T) {
	st := newFakeStore()
	var want []string
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("Qm%03d", i)
		st.pins = append(st.pins, id)
		if i%7 == 3 {
			continue
		}
		st.nodes[id] = &store.Node{ID: id, IsDirectory: i%2 == 0, Size: int64(i)}
		want = append(want, id)
	}
	f, _ := testFS(st, '/')

	entries, err := f.FindFiles(context.Background(), "/ipfs", nil)
	require.NoError(t, err)
	assert.Equal(t, want, names(entries))
	for _, e := range entries {
		var i int
		fmt.Sscanf(e.Name, "Qm%03d", &i)
		assert.Equal(t, i%2 == 0, e.IsDirectory, e.Name)
	}
}

func TestList_PinnedListFailure(t *testing.T) {
	st := newFakeStore()
	st.pinErr = errStoreDown
	f, _ := testFS(st, '/')

	_, err := f.FindFiles(context.Background(), "/ipfs", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_DirectoryNodeUsesLinkKinds(t *testing.T) {
	st := newFakeStore()
	st.nodes["/ipfs/QmDir"] = &store.Node{
		ID:          "QmDir",
		IsDirectory: true,
		Links: []store.Link{
			{Name: "a.txt", ID: "QmA", Size: 10},
			{Name: "sub", ID: "QmSub", IsDirectory: true},
		},
	}
	f, _ := testFS(st, '/')

	entries, err := f.FindFiles(context.Background(), "/ipfs/QmDir", nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, FileInformation{
		Name:           "a.txt",
		Size:           10,
		Attributes:     AttrReadOnly,
		CreationTime:   fixedNow,
		LastAccessTime: fixedNow,
		LastWriteTime:  fixedNow,
	}, entries[0])
	assert.True(t, entries[1].IsDirectory)
	assert.Equal(t, AttrReadOnly|AttrDirectory, entries[1].Attributes)
}

func TestList_NotEnumerable(t *testing.T) {
	st := newFakeStore()
	st.addFile("/ipfs/QmFile", "QmFile", []byte("x"))
	f, _ := testFS(st, '/')
	ctx := context.Background()

	_, err := f.FindFiles(ctx, "/README.txt", nil)
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = f.FindFiles(ctx, "/ipfs/QmFile", nil)
	assert.ErrorIs(t, err, ErrNotADirectory)

	_, err = f.FindFiles(ctx, "/ipfs/QmGone", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
