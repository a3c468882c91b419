// Package cgofuse serves the filesystem through cgofuse, which drives
// WinFsp on Windows, macFUSE on macOS and libfuse on Linux.
package cgofuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/winfsp/cgofuse/fuse"
	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/logging"
	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

// Options configures the host.
type Options struct {
	VolumeLabel string
	Debug       bool
}

// Backend implements mount.Backend using cgofuse.
type Backend struct {
	target string
	opts   Options
	ops    vfs.Operations
	host   *fuse.FileSystemHost
	ctx    context.Context
	cancel context.CancelFunc
	l      *zap.Logger

	mu      sync.Mutex
	handles map[uint64]*vfs.FileInfo
	nextFh  atomic.Uint64

	// hostMu guards host and stopped. A stopped backend never mounts.
	hostMu  sync.Mutex
	stopped bool
}

// New creates a cgofuse backend for target, a drive letter such as "T:" on
// Windows or a directory elsewhere.
func New(target string, opts Options) *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		target:  target,
		opts:    opts,
		handles: make(map[uint64]*vfs.FileInfo),
		ctx:     ctx,
		cancel:  cancel,
		l:       logging.Named("cgofuse"),
	}
}

func (b *Backend) Name() string {
	return "cgofuse"
}

// Start mounts ops and blocks until the host is unmounted or ctx ends.
// Start after Stop returns nil without mounting.
func (b *Backend) Start(ctx context.Context, ops vfs.Operations) error {
	b.hostMu.Lock()
	if b.stopped {
		b.hostMu.Unlock()
		return nil
	}
	b.ops = ops

	if runtime.GOOS != "windows" {
		if err := os.MkdirAll(b.target, 0755); err != nil {
			b.hostMu.Unlock()
			return err
		}
	}

	host := fuse.NewFileSystemHost(b)
	host.SetCapReaddirPlus(false)
	host.SetCapCaseInsensitive(false)
	b.host = host
	b.hostMu.Unlock()

	args := mountArgs(runtime.GOOS, b.opts)
	b.l.Info("mounting cgofuse filesystem", zap.String("target", b.target), zap.Strings("args", args))

	// host.Mount blocks until unmounted
	errCh := make(chan error, 1)
	go func() {
		if !host.Mount(b.target, args) {
			errCh <- fmt.Errorf("cgofuse: mount %s failed", b.target)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		b.Stop()
		<-errCh
		return ctx.Err()
	}
}

// Stop unmounts the host. Later calls do nothing. A Stop that lands
// before the host is live is picked up by Init once it is.
func (b *Backend) Stop() error {
	b.hostMu.Lock()
	if b.stopped {
		b.hostMu.Unlock()
		return nil
	}
	b.stopped = true
	host := b.host
	b.hostMu.Unlock()

	if host != nil {
		host.Unmount()
	}
	return nil
}

func (b *Backend) isStopped() (*fuse.FileSystemHost, bool) {
	b.hostMu.Lock()
	defer b.hostMu.Unlock()
	return b.host, b.stopped
}

// mountArgs builds the host command line. Read-only is requested from the
// host as well as enforced by the filesystem.
func mountArgs(goos string, opts Options) []string {
	label := opts.VolumeLabel
	if label == "" {
		label = vfs.DefaultVolumeLabel
	}

	var args []string
	switch goos {
	case "windows":
		args = []string{
			"-o", "volname=" + label,
			"-o", "FileSystemName=" + vfs.FileSystemName,
			"-o", "uid=-1,gid=-1",
			"-o", "umask=0222",
		}
	case "darwin":
		args = []string{"-o", "ro", "-o", "volname=" + label, "-o", "fsname=ipfs"}
	default:
		args = []string{"-o", "ro", "-o", "fsname=ipfs", "-o", "subtype=ipfs"}
	}
	if opts.Debug {
		args = append(args, "-d")
	}
	return args
}

func (b *Backend) allocFh(info *vfs.FileInfo) uint64 {
	fh := b.nextFh.Add(1)
	b.mu.Lock()
	b.handles[fh] = info
	b.mu.Unlock()
	return fh
}

func (b *Backend) getFh(fh uint64) *vfs.FileInfo {
	if fh == ^uint64(0) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handles[fh]
}

func (b *Backend) freeFh(fh uint64) *vfs.FileInfo {
	b.mu.Lock()
	info := b.handles[fh]
	delete(b.handles, fh)
	b.mu.Unlock()
	return info
}

// errno maps translation-layer errors onto negative FUSE status codes.
func errno(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, vfs.ErrNotFound):
		return -fuse.ENOENT
	case errors.Is(err, vfs.ErrAccessDenied):
		return -fuse.EACCES
	case errors.Is(err, vfs.ErrNotImplemented):
		return -fuse.ENOSYS
	case errors.Is(err, vfs.ErrNotADirectory):
		return -fuse.ENOTDIR
	case errors.Is(err, vfs.ErrIsADirectory):
		return -fuse.EISDIR
	case errors.Is(err, vfs.ErrInvalidArgument):
		return -fuse.EINVAL
	default:
		return -fuse.EIO
	}
}

func fillStat(fi vfs.FileInformation, stat *fuse.Stat_t) {
	sd := vfs.SecurityFor(fi.IsDirectory)
	stat.Size = fi.Size
	stat.Mtim = fuse.NewTimespec(fi.LastWriteTime)
	stat.Atim = fuse.NewTimespec(fi.LastAccessTime)
	stat.Ctim = fuse.NewTimespec(fi.LastWriteTime)
	stat.Birthtim = fuse.NewTimespec(fi.CreationTime)
	if fi.IsDirectory {
		stat.Mode = fuse.S_IFDIR | uint32(sd.Mode.Perm())
		stat.Nlink = 2
	} else {
		stat.Mode = fuse.S_IFREG | uint32(sd.Mode.Perm())
		stat.Nlink = 1
	}
	stat.Uid = uint32(os.Getuid())
	stat.Gid = uint32(os.Getgid())
}

// openRequest translates open flags into the access and disposition of a
// CreateFile call.
func openRequest(flags int) (vfs.AccessMask, vfs.CreationMode) {
	access := vfs.AccessReadData
	switch flags & fuse.O_ACCMODE {
	case fuse.O_WRONLY:
		access = vfs.AccessWriteData
	case fuse.O_RDWR:
		access |= vfs.AccessWriteData
	}
	if flags&fuse.O_APPEND != 0 {
		access |= vfs.AccessAppendData
	}

	mode := vfs.OpenExisting
	switch {
	case flags&fuse.O_CREAT != 0 && flags&fuse.O_EXCL != 0:
		mode = vfs.CreateNew
	case flags&fuse.O_CREAT != 0 && flags&fuse.O_TRUNC != 0:
		mode = vfs.CreateAlways
	case flags&fuse.O_CREAT != 0:
		mode = vfs.OpenAlways
	case flags&fuse.O_TRUNC != 0:
		mode = vfs.TruncateExisting
	}
	return access, mode
}

// --- fuse.FileSystemInterface implementation ---

func (b *Backend) Init() {
	if err := b.ops.Mounted(b.ctx); err != nil {
		b.l.Warn("mounted callback failed", zap.Error(err))
	}
	// Stop raced the mount; Unmount cannot run on the host's own init thread.
	if host, stopped := b.isStopped(); stopped && host != nil {
		go host.Unmount()
	}
}

func (b *Backend) Destroy() {
	if err := b.ops.Unmounted(b.ctx); err != nil {
		b.l.Warn("unmounted callback failed", zap.Error(err))
	}
	b.cancel()
}

func (b *Backend) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	fi, err := b.ops.GetFileInformation(b.ctx, path, b.getFh(fh))
	if err != nil {
		return errno(err)
	}
	fillStat(fi, stat)
	return 0
}

func (b *Backend) Opendir(path string) (int, uint64) {
	info := &vfs.FileInfo{}
	if err := b.ops.CreateFile(b.ctx, path, vfs.AccessReadData, vfs.OpenExisting, info); err != nil {
		return errno(err), ^uint64(0)
	}
	if !info.IsDirectory {
		b.ops.CloseFile(b.ctx, path, info)
		return -fuse.ENOTDIR, ^uint64(0)
	}
	return 0, b.allocFh(info)
}

func (b *Backend) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	entries, err := b.ops.FindFiles(b.ctx, path, b.getFh(fh))
	if err != nil {
		return errno(err)
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, e := range entries {
		var st fuse.Stat_t
		fillStat(e, &st)
		if !fill(e.Name, &st, 0) {
			break
		}
	}
	return 0
}

func (b *Backend) Releasedir(path string, fh uint64) int {
	return b.Release(path, fh)
}

func (b *Backend) Open(path string, flags int) (int, uint64) {
	access, mode := openRequest(flags)
	info := &vfs.FileInfo{}
	if err := b.ops.CreateFile(b.ctx, path, access, mode, info); err != nil {
		return errno(err), ^uint64(0)
	}
	if info.IsDirectory {
		b.ops.CloseFile(b.ctx, path, info)
		return -fuse.EISDIR, ^uint64(0)
	}
	return 0, b.allocFh(info)
}

func (b *Backend) Read(path string, buff []byte, ofst int64, fh uint64) int {
	n, err := b.ops.ReadFile(b.ctx, path, buff, ofst, b.getFh(fh))
	if err != nil {
		return errno(err)
	}
	return n
}

func (b *Backend) Release(path string, fh uint64) int {
	info := b.freeFh(fh)
	if info == nil {
		return 0
	}
	b.ops.Cleanup(b.ctx, path, info)
	b.ops.CloseFile(b.ctx, path, info)
	return 0
}

func (b *Backend) Write(path string, buff []byte, ofst int64, fh uint64) int {
	_, err := b.ops.WriteFile(b.ctx, path, buff, ofst, b.getFh(fh))
	return errno(err)
}

func (b *Backend) Flush(path string, fh uint64) int {
	return errno(b.ops.FlushFileBuffers(b.ctx, path, b.getFh(fh)))
}

func (b *Backend) Fsync(path string, datasync bool, fh uint64) int {
	return errno(b.ops.FlushFileBuffers(b.ctx, path, b.getFh(fh)))
}

func (b *Backend) Fsyncdir(path string, datasync bool, fh uint64) int {
	return 0
}

func (b *Backend) Create(path string, flags int, mode uint32) (int, uint64) {
	access, _ := openRequest(flags)
	err := b.ops.CreateFile(b.ctx, path, access|vfs.AccessWriteData, vfs.CreateNew, &vfs.FileInfo{})
	return errno(err), ^uint64(0)
}

func (b *Backend) Mknod(path string, mode uint32, dev uint64) int {
	return errno(b.ops.CreateFile(b.ctx, path, vfs.AccessWriteData, vfs.CreateNew, &vfs.FileInfo{}))
}

func (b *Backend) Mkdir(path string, mode uint32) int {
	return errno(b.ops.CreateFile(b.ctx, path, vfs.AccessWriteData, vfs.CreateNew, &vfs.FileInfo{IsDirectory: true}))
}

func (b *Backend) Unlink(path string) int {
	return errno(b.ops.DeleteFile(b.ctx, path, nil))
}

func (b *Backend) Rmdir(path string) int {
	return errno(b.ops.DeleteDirectory(b.ctx, path, nil))
}

func (b *Backend) Rename(oldpath string, newpath string) int {
	return errno(b.ops.MoveFile(b.ctx, oldpath, newpath, true, nil))
}

func (b *Backend) Truncate(path string, size int64, fh uint64) int {
	return errno(b.ops.SetEndOfFile(b.ctx, path, size, b.getFh(fh)))
}

func (b *Backend) Utimens(path string, tmsp []fuse.Timespec) int {
	var atime, mtime time.Time
	if len(tmsp) >= 2 {
		atime = tmsp[0].Time()
		mtime = tmsp[1].Time()
	}
	return errno(b.ops.SetFileTime(b.ctx, path, time.Time{}, atime, mtime, nil))
}

func (b *Backend) Chmod(path string, mode uint32) int {
	return errno(b.ops.SetFileAttributes(b.ctx, path, vfs.AttrNormal, nil))
}

func (b *Backend) Chown(path string, uid uint32, gid uint32) int {
	return errno(b.ops.SetFileSecurity(b.ctx, path, vfs.SecurityDescriptor{}, nil))
}

func (b *Backend) Access(path string, mask uint32) int {
	// W_OK
	if mask&2 != 0 {
		return -fuse.EACCES
	}
	_, err := b.ops.GetFileInformation(b.ctx, path, nil)
	return errno(err)
}

func (b *Backend) Statfs(path string, stat *fuse.Statfs_t) int {
	space, err := b.ops.GetDiskFreeSpace(b.ctx)
	if err != nil {
		return errno(err)
	}
	vol, err := b.ops.GetVolumeInformation(b.ctx)
	if err != nil {
		return errno(err)
	}
	stat.Bsize = 4096
	stat.Frsize = 4096
	stat.Blocks = space.TotalBytes / 4096
	stat.Bfree = space.TotalFreeBytes / 4096
	stat.Bavail = space.FreeBytesAvailable / 4096
	stat.Namemax = uint64(vol.MaxComponentLength)
	if vol.Features&vfs.FeatureReadOnlyVolume != 0 {
		stat.Flag |= 1 // ST_RDONLY
	}
	return 0
}

func (b *Backend) Link(oldpath string, newpath string) int {
	return -fuse.EACCES
}

func (b *Backend) Symlink(target string, newpath string) int {
	return -fuse.EACCES
}

func (b *Backend) Readlink(path string) (int, string) {
	return -fuse.ENOSYS, ""
}

func (b *Backend) Setxattr(path string, name string, value []byte, flags int) int {
	return -fuse.EACCES
}

func (b *Backend) Removexattr(path string, name string) int {
	return -fuse.EACCES
}

func (b *Backend) Getxattr(path string, name string) (int, []byte) {
	_, err := b.ops.FindStreams(b.ctx, path, nil)
	return errno(err), nil
}

func (b *Backend) Listxattr(path string, fill func(name string) bool) int {
	streams, err := b.ops.FindStreams(b.ctx, path, nil)
	if err != nil {
		return errno(err)
	}
	for _, s := range streams {
		if !fill(s.Name) {
			break
		}
	}
	return 0
}
