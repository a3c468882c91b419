//go:build !windows

package gofuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"

	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

// node is one path in the tree. The inode holds only the path; every call
// goes back through the translation layer.
type node struct {
	fs.Inode

	ops  vfs.Operations
	path string
}

// renameNoReplace is the Linux RENAME_NOREPLACE flag as passed by the kernel.
const renameNoReplace = 0x1

// handle carries the resolution made at open time.
type handle struct {
	info *vfs.FileInfo
}

var _ fs.InodeEmbedder = (*node)(nil)
var _ fs.NodeGetattrer = (*node)(nil)
var _ fs.NodeLookuper = (*node)(nil)
var _ fs.NodeReaddirer = (*node)(nil)
var _ fs.NodeOpener = (*node)(nil)
var _ fs.NodeReader = (*node)(nil)
var _ fs.NodeReleaser = (*node)(nil)
var _ fs.NodeStatfser = (*node)(nil)
var _ fs.NodeSetattrer = (*node)(nil)
var _ fs.NodeCreater = (*node)(nil)
var _ fs.NodeMkdirer = (*node)(nil)
var _ fs.NodeUnlinker = (*node)(nil)
var _ fs.NodeRmdirer = (*node)(nil)
var _ fs.NodeRenamer = (*node)(nil)
var _ fs.NodeGetxattrer = (*node)(nil)
var _ fs.NodeListxattrer = (*node)(nil)

func (n *node) child(name string) string {
	if n.path == "/" {
		return "/" + name
	}
	return n.path + "/" + name
}

func handleInfo(fh fs.FileHandle) *vfs.FileInfo {
	if h, ok := fh.(*handle); ok {
		return h.info
	}
	return nil
}

func fillAttr(fi vfs.FileInformation, out *fuse.Attr) {
	sd := vfs.SecurityFor(fi.IsDirectory)
	if fi.IsDirectory {
		out.Mode = unix.S_IFDIR | uint32(sd.Mode.Perm())
		out.Nlink = 2
	} else {
		out.Mode = unix.S_IFREG | uint32(sd.Mode.Perm())
		out.Nlink = 1
	}
	out.Size = uint64(fi.Size)
	out.Blocks = (out.Size + 511) / 512
	out.SetTimes(&fi.LastAccessTime, &fi.LastWriteTime, &fi.LastWriteTime)
}

func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	fi, err := n.ops.GetFileInformation(ctx, n.path, handleInfo(fh))
	if err != nil {
		return errno(err)
	}
	fillAttr(fi, &out.Attr)
	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.child(name)
	fi, err := n.ops.GetFileInformation(ctx, p, nil)
	if err != nil {
		return nil, errno(err)
	}
	fillAttr(fi, &out.Attr)

	child := &node{ops: n.ops, path: p}
	stable := fs.StableAttr{Mode: out.Attr.Mode & unix.S_IFMT}
	return n.NewInode(ctx, child, stable), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.ops.FindFiles(ctx, n.path, nil)
	if err != nil {
		return nil, errno(err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(unix.S_IFREG)
		if e.IsDirectory {
			mode = unix.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	access := vfs.AccessReadData
	if flags&(unix.O_WRONLY|unix.O_RDWR) != 0 {
		access |= vfs.AccessWriteData
	}
	mode := vfs.OpenExisting
	if flags&unix.O_TRUNC != 0 {
		mode = vfs.TruncateExisting
	}

	info := &vfs.FileInfo{}
	if err := n.ops.CreateFile(ctx, n.path, access, mode, info); err != nil {
		return nil, 0, errno(err)
	}
	if info.IsDirectory {
		n.ops.CloseFile(ctx, n.path, info)
		return nil, 0, unix.EISDIR
	}
	// content behind a CID never changes
	return &handle{info: info}, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	count, err := n.ops.ReadFile(ctx, n.path, dest, off, handleInfo(fh))
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:count]), 0
}

func (n *node) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	if info := handleInfo(fh); info != nil {
		n.ops.Cleanup(ctx, n.path, info)
		n.ops.CloseFile(ctx, n.path, info)
	}
	return 0
}

func (n *node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	space, err := n.ops.GetDiskFreeSpace(ctx)
	if err != nil {
		return errno(err)
	}
	vol, err := n.ops.GetVolumeInformation(ctx)
	if err != nil {
		return errno(err)
	}
	out.Bsize = 4096
	out.Frsize = 4096
	out.Blocks = space.TotalBytes / 4096
	out.Bfree = space.TotalFreeBytes / 4096
	out.Bavail = space.FreeBytesAvailable / 4096
	out.NameLen = vol.MaxComponentLength
	return 0
}

func (n *node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		return errno(n.ops.SetEndOfFile(ctx, n.path, int64(size), handleInfo(fh)))
	}
	if _, ok := in.GetMode(); ok {
		return errno(n.ops.SetFileAttributes(ctx, n.path, vfs.AttrNormal, handleInfo(fh)))
	}
	if _, ok := in.GetUID(); ok {
		return errno(n.ops.SetFileSecurity(ctx, n.path, vfs.SecurityDescriptor{}, handleInfo(fh)))
	}
	if _, ok := in.GetGID(); ok {
		return errno(n.ops.SetFileSecurity(ctx, n.path, vfs.SecurityDescriptor{}, handleInfo(fh)))
	}
	atime, _ := in.GetATime()
	mtime, _ := in.GetMTime()
	return errno(n.ops.SetFileTime(ctx, n.path, atime, atime, mtime, handleInfo(fh)))
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	err := n.ops.CreateFile(ctx, n.child(name), vfs.AccessWriteData, vfs.CreateNew, &vfs.FileInfo{})
	return nil, nil, 0, errno(err)
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	err := n.ops.CreateFile(ctx, n.child(name), vfs.AccessWriteData, vfs.CreateNew, &vfs.FileInfo{IsDirectory: true})
	return nil, errno(err)
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errno(n.ops.DeleteFile(ctx, n.child(name), nil))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errno(n.ops.DeleteDirectory(ctx, n.child(name), nil))
}

func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	target := "/" + newName
	if p, ok := newParent.(*node); ok {
		target = p.child(newName)
	}
	return errno(n.ops.MoveFile(ctx, n.child(name), target, flags&renameNoReplace == 0, nil))
}

func (n *node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	_, err := n.ops.FindStreams(ctx, n.path, nil)
	if err != nil {
		return 0, errno(err)
	}
	return 0, unix.ENODATA
}

// Listxattr reports an empty attribute list.
func (n *node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	return 0, 0
}
