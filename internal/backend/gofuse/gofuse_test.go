//go:build !windows

package gofuse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wforney/net-ipfs-mount/internal/resources"
	"github.com/wforney/net-ipfs-mount/internal/store"
	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

type memStore struct {
	nodes   map[string]*store.Node
	content map[string][]byte
}

func (m *memStore) GetNode(ctx context.Context, path string) (*store.Node, error) {
	if n, ok := m.nodes[path]; ok {
		return n, nil
	}
	return nil, errors.New("not found")
}

func (m *memStore) ReadRange(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error) {
	data := m.content[id]
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[offset:end])), nil
}

func (m *memStore) ListPinned(ctx context.Context) ([]string, error) {
	return nil, nil
}

func testOps() vfs.Operations {
	st := &memStore{
		nodes: map[string]*store.Node{
			"/ipfs/QmDir": {ID: "QmDir", IsDirectory: true, Links: []store.Link{
				{Name: "hello.txt", ID: "QmHello", Size: 5},
				{Name: "sub", ID: "QmSub", IsDirectory: true},
			}},
			"/ipfs/QmDir/hello.txt": {ID: "QmHello", Size: 5},
		},
		content: map[string][]byte{"QmHello": []byte("hello")},
	}
	statics := resources.FromMap(map[string][]byte{"README.txt": []byte("readme")})
	return vfs.New(st, statics, vfs.Options{Out: io.Discard, Logger: zap.NewNop()})
}

func TestErrno(t *testing.T) {
	assert.Equal(t, unix.Errno(0), errno(nil))
	assert.Equal(t, unix.ENOENT, errno(vfs.ErrNotFound))
	assert.Equal(t, unix.EACCES, errno(vfs.ErrAccessDenied))
	assert.Equal(t, unix.ENOTSUP, errno(vfs.ErrNotImplemented))
	assert.Equal(t, unix.ENOTDIR, errno(vfs.ErrNotADirectory))
	assert.Equal(t, unix.EISDIR, errno(vfs.ErrIsADirectory))
	assert.Equal(t, unix.EINVAL, errno(vfs.ErrInvalidArgument))
	assert.Equal(t, unix.EIO, errno(errors.New("boom")))
}

func TestGetattr(t *testing.T) {
	ops := testOps()
	ctx := context.Background()

	var out fuse.AttrOut
	require.Equal(t, unix.Errno(0), (&node{ops: ops, path: "/"}).Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(unix.S_IFDIR|0555), out.Mode)

	out = fuse.AttrOut{}
	require.Equal(t, unix.Errno(0), (&node{ops: ops, path: "/ipfs/QmDir/hello.txt"}).Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(unix.S_IFREG|0444), out.Mode)
	assert.Equal(t, uint64(5), out.Size)

	assert.Equal(t, unix.ENOENT, (&node{ops: ops, path: "/ipfs/QmNope"}).Getattr(ctx, nil, &out))
}

func TestReaddir(t *testing.T) {
	ops := testOps()
	ds, errno := (&node{ops: ops, path: "/ipfs/QmDir"}).Readdir(context.Background())
	require.Equal(t, unix.Errno(0), errno)

	var got []fuse.DirEntry
	for ds.HasNext() {
		e, errno := ds.Next()
		require.Equal(t, unix.Errno(0), errno)
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "hello.txt", got[0].Name)
	assert.Equal(t, uint32(unix.S_IFREG), got[0].Mode)
	assert.Equal(t, uint32(unix.S_IFDIR), got[1].Mode)

	_, errno = (&node{ops: ops, path: "/README.txt"}).Readdir(context.Background())
	assert.Equal(t, unix.ENOTDIR, errno)
}

func TestOpenReadRelease(t *testing.T) {
	ctx := context.Background()
	n := &node{ops: testOps(), path: "/ipfs/QmDir/hello.txt"}

	fh, flags, errno := n.Open(ctx, unix.O_RDONLY)
	require.Equal(t, unix.Errno(0), errno)
	assert.Equal(t, uint32(fuse.FOPEN_KEEP_CACHE), flags)

	buf := make([]byte, 16)
	res, errno := n.Read(ctx, fh, buf, 1)
	require.Equal(t, unix.Errno(0), errno)
	data, status := res.Bytes(buf)
	require.True(t, status.Ok())
	assert.Equal(t, "ello", string(data))

	assert.Equal(t, unix.Errno(0), n.Release(ctx, fh))
	assert.Nil(t, fh.(*handle).info.Context)
}

func TestOpenRejects(t *testing.T) {
	ctx := context.Background()
	ops := testOps()

	_, _, errno := (&node{ops: ops, path: "/README.txt"}).Open(ctx, unix.O_RDWR)
	assert.Equal(t, unix.EACCES, errno)

	_, _, errno = (&node{ops: ops, path: "/ipfs"}).Open(ctx, unix.O_RDONLY)
	assert.Equal(t, unix.EISDIR, errno)
}

func TestMutationsAreDenied(t *testing.T) {
	ctx := context.Background()
	root := &node{ops: testOps(), path: "/"}
	file := &node{ops: root.ops, path: "/README.txt"}

	_, _, _, errno := root.Create(ctx, "new.txt", unix.O_WRONLY|unix.O_CREAT, 0644, &fuse.EntryOut{})
	assert.Equal(t, unix.EACCES, errno)
	_, errno = root.Mkdir(ctx, "dir", 0755, &fuse.EntryOut{})
	assert.Equal(t, unix.EACCES, errno)
	assert.Equal(t, unix.EACCES, root.Unlink(ctx, "README.txt"))
	assert.Equal(t, unix.EACCES, root.Rmdir(ctx, "ipfs"))
	assert.Equal(t, unix.EACCES, root.Rename(ctx, "README.txt", root, "x", 0))

	in := &fuse.SetAttrIn{}
	in.Valid = fuse.FATTR_SIZE
	assert.Equal(t, unix.EACCES, file.Setattr(ctx, nil, in, &fuse.AttrOut{}))
	in.Valid = fuse.FATTR_MODE
	assert.Equal(t, unix.EACCES, file.Setattr(ctx, nil, in, &fuse.AttrOut{}))
}

func TestStatfs(t *testing.T) {
	var out fuse.StatfsOut
	require.Equal(t, unix.Errno(0), (&node{ops: testOps(), path: "/"}).Statfs(context.Background(), &out))
	assert.Equal(t, uint32(255), out.NameLen)
	assert.Zero(t, out.Blocks)
}

func TestXattrs(t *testing.T) {
	n := &node{ops: testOps(), path: "/README.txt"}
	_, errno := n.Getxattr(context.Background(), "user.x", nil)
	assert.Equal(t, unix.ENOTSUP, errno)
	size, errno := n.Listxattr(context.Background(), nil)
	assert.Equal(t, unix.Errno(0), errno)
	assert.Zero(t, size)
}

func TestStopBeforeStart(t *testing.T) {
	b := New(t.TempDir(), Options{})
	require.NoError(t, b.Stop())
	require.NoError(t, b.Stop())
	assert.Equal(t, "gofuse", b.Name())

	// a stopped backend never mounts
	require.NoError(t, b.Start(context.Background(), testOps()))
}
