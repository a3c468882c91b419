package vfs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFile(t *testing.T) {
	st := newFakeStore()
	st.addFile("/ipfs/QmFile", "QmFile", []byte("content"))
	f, _ := testFS(st, '\\')
	ctx := context.Background()

	t.Run("open existing for read", func(t *testing.T) {
		info := &FileInfo{}
		require.NoError(t, f.CreateFile(ctx, `\ipfs\QmFile`, AccessReadData|AccessGenericRead, OpenExisting, info))
		require.NotNil(t, info.Context)
		assert.Equal(t, KindNode, info.Context.Kind)
		assert.False(t, info.IsDirectory)
	})
	t.Run("open directory", func(t *testing.T) {
		info := &FileInfo{}
		require.NoError(t, f.CreateFile(ctx, `\ipfs`, AccessReadData, OpenExisting, info))
		assert.True(t, info.IsDirectory)
	})
	t.Run("missing", func(t *testing.T) {
		err := f.CreateFile(ctx, `\ipfs\QmNope`, AccessReadData, OpenExisting, &FileInfo{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("non-open dispositions", func(t *testing.T) {
		for _, mode := range []CreationMode{CreateNew, CreateAlways, OpenAlways, TruncateExisting} {
			err := f.CreateFile(ctx, `\README.txt`, AccessReadData, mode, &FileInfo{})
			assert.ErrorIs(t, err, ErrAccessDenied, "mode %d", mode)
		}
	})
	t.Run("write access", func(t *testing.T) {
		for _, access := range []AccessMask{AccessWriteData, AccessAppendData, AccessGenericWrite, AccessDelete} {
			err := f.CreateFile(ctx, `\README.txt`, AccessReadData|access, OpenExisting, &FileInfo{})
			assert.ErrorIs(t, err, ErrAccessDenied, "access %#x", access)
		}
	})
}

func TestHandleReusesResolution(t *testing.T) {
	st := newFakeStore()
	st.addFile("/ipfs/QmFile", "QmFile", []byte("content"))
	f, _ := testFS(st, '/')
	ctx := context.Background()

	info := &FileInfo{}
	require.NoError(t, f.CreateFile(ctx, "/ipfs/QmFile", AccessReadData, OpenExisting, info))

	buf := make([]byte, 7)
	n, err := f.ReadFile(ctx, "/ipfs/QmFile", buf, 0, info)
	require.NoError(t, err)
	assert.Equal(t, "content", string(buf[:n]))

	fi, err := f.GetFileInformation(ctx, "/ipfs/QmFile", info)
	require.NoError(t, err)
	assert.Equal(t, int64(7), fi.Size)

	assert.Len(t, st.calls(), 1)

	f.Cleanup(ctx, "/ipfs/QmFile", info)
	f.CloseFile(ctx, "/ipfs/QmFile", info)
	assert.Nil(t, info.Context)
}

func TestMutationsAreDenied(t *testing.T) {
	st := newFakeStore()
	st.addFile("/ipfs/QmFile", "QmFile", []byte("content"))
	f, _ := testFS(st, '/')
	ctx := context.Background()
	name := "/ipfs/QmFile"

	_, err := f.WriteFile(ctx, name, []byte("x"), 0, nil)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorIs(t, f.SetFileAttributes(ctx, name, AttrNormal, nil), ErrAccessDenied)
	assert.ErrorIs(t, f.SetFileTime(ctx, name, time.Now(), time.Now(), time.Now(), nil), ErrAccessDenied)
	assert.ErrorIs(t, f.DeleteFile(ctx, name, nil), ErrAccessDenied)
	assert.ErrorIs(t, f.DeleteDirectory(ctx, "/ipfs", nil), ErrAccessDenied)
	assert.ErrorIs(t, f.MoveFile(ctx, name, "/ipfs/QmOther", true, nil), ErrAccessDenied)
	assert.ErrorIs(t, f.SetEndOfFile(ctx, name, 0, nil), ErrAccessDenied)
	assert.ErrorIs(t, f.SetAllocationSize(ctx, name, 0, nil), ErrAccessDenied)
	assert.ErrorIs(t, f.SetFileSecurity(ctx, name, SecurityFor(false), nil), ErrAccessDenied)

	buf := make([]byte, 16)
	n, err := f.ReadFile(ctx, name, buf, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "content", string(buf[:n]))
	assert.Equal(t, []string{name}, st.calls(), "mutations never reach the store")
}

func TestNoOpsSucceed(t *testing.T) {
	f, _ := testFS(newFakeStore(), '/')
	ctx := context.Background()

	assert.NoError(t, f.FlushFileBuffers(ctx, "/README.txt", nil))
	assert.NoError(t, f.LockFile(ctx, "/README.txt", 0, 10, nil))
	assert.NoError(t, f.UnlockFile(ctx, "/README.txt", 0, 10, nil))

	space, err := f.GetDiskFreeSpace(ctx)
	require.NoError(t, err)
	assert.Equal(t, DiskFreeSpace{}, space)
}

func TestUnsupportedEnumerations(t *testing.T) {
	f, _ := testFS(newFakeStore(), '/')
	ctx := context.Background()

	_, err := f.FindFilesWithPattern(ctx, "/", "*.txt", nil)
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = f.FindStreams(ctx, "/README.txt", nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestVolumeInformation(t *testing.T) {
	f, _ := testFS(newFakeStore(), '/')

	vol, err := f.GetVolumeInformation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultVolumeLabel, vol.Label)
	assert.Equal(t, "IPFS", vol.FileSystemName)
	assert.Equal(t, uint32(255), vol.MaxComponentLength)
	for _, feature := range []FileSystemFeatures{
		FeatureReadOnlyVolume,
		FeatureCasePreservedNames,
		FeatureCaseSensitiveSearch,
		FeaturePersistentACLs,
		FeatureSupportsRemoteStorage,
		FeatureUnicodeOnDisk,
		FeatureSupportsObjectIDs,
	} {
		assert.NotZero(t, vol.Features&feature, "feature %#x", feature)
	}
}

func TestGetFileSecurity(t *testing.T) {
	f, _ := testFS(newFakeStore(), '/')
	ctx := context.Background()

	sd, err := f.GetFileSecurity(ctx, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, SecurityFor(true), sd)

	sd, err = f.GetFileSecurity(ctx, "/README.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, SecurityFor(false), sd)

	_, err = f.GetFileSecurity(ctx, "/ipfs/QmGone", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMountedNotices(t *testing.T) {
	f, out := testFS(newFakeStore(), '/')
	ctx := context.Background()

	require.NoError(t, f.Mounted(ctx))
	require.NoError(t, f.Unmounted(ctx))
	assert.Equal(t, "IPFS mounted\nIPFS unmounted\n", out.String())
}

func TestConcurrentReads(t *testing.T) {
	st := newFakeStore()
	st.addFile("/ipfs/QmFile", "QmFile", []byte("0123456789"))
	f, _ := testFS(st, '/')
	ctx := context.Background()

	done := make(chan string, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			buf := make([]byte, 10)
			n, _ := f.ReadFile(ctx, "/ipfs/QmFile", buf, 0, nil)
			done <- string(buf[:n])
		}()
	}
	for i := 0; i < cap(done); i++ {
		assert.Equal(t, "0123456789", <-done)
	}
}
