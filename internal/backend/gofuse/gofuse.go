//go:build !windows

// Package gofuse serves the filesystem through the pure Go go-fuse library
// on Linux and macOS.
package gofuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/wforney/net-ipfs-mount/internal/logging"
	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

// Options configures the host.
type Options struct {
	Debug bool
	// AttrTimeout is how long the kernel may cache attributes and entries.
	AttrTimeout time.Duration
}

// Backend implements mount.Backend using go-fuse.
type Backend struct {
	target string
	opts   Options
	l      *zap.Logger

	mu      sync.Mutex
	server  *fuse.Server
	stopped bool
}

// New creates a go-fuse backend that mounts at the directory target.
func New(target string, opts Options) *Backend {
	if opts.AttrTimeout == 0 {
		opts.AttrTimeout = time.Second
	}
	return &Backend{target: target, opts: opts, l: logging.Named("gofuse")}
}

func (b *Backend) Name() string {
	return "gofuse"
}

// Start mounts ops and blocks until the filesystem is unmounted or ctx ends.
func (b *Backend) Start(ctx context.Context, ops vfs.Operations) error {
	if err := os.MkdirAll(b.target, 0755); err != nil {
		return fmt.Errorf("create mount point: %w", err)
	}

	root := &node{ops: ops, path: "/"}
	timeout := b.opts.AttrTimeout
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther: false,
			Debug:      b.opts.Debug,
			FsName:     "ipfs",
			Name:       "ipfs",
			Options:    []string{"ro"},
			Logger:     logging.StdLogger("gofuse.fuse", zapcore.DebugLevel),
		},
		EntryTimeout: &timeout,
		AttrTimeout:  &timeout,
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	server, err := fs.Mount(b.target, root, opts)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("mount: %w", err)
	}
	b.server = server
	b.mu.Unlock()

	b.l.Info("mounted go-fuse filesystem", zap.String("target", b.target))
	if err := ops.Mounted(ctx); err != nil {
		b.l.Warn("mounted callback failed", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.Stop()
		<-done
	}

	if err := ops.Unmounted(context.Background()); err != nil {
		b.l.Warn("unmounted callback failed", zap.Error(err))
	}
	return nil
}

// Stop unmounts the filesystem. Later calls do nothing.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil
	}
	b.stopped = true
	if b.server == nil {
		return nil
	}
	return b.server.Unmount()
}

// errno maps translation-layer errors onto kernel status codes.
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, vfs.ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, vfs.ErrAccessDenied):
		return unix.EACCES
	case errors.Is(err, vfs.ErrNotImplemented):
		return unix.ENOTSUP
	case errors.Is(err, vfs.ErrNotADirectory):
		return unix.ENOTDIR
	case errors.Is(err, vfs.ErrIsADirectory):
		return unix.EISDIR
	case errors.Is(err, vfs.ErrInvalidArgument):
		return unix.EINVAL
	default:
		return unix.EIO
	}
}
