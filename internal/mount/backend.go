package mount

import (
	"context"

	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

// Backend is a driver host that serves a filesystem at one mount target.
type Backend interface {
	// Start mounts ops and blocks until the filesystem is detached or ctx
	// is cancelled. The host calls ops.Mounted once the target is live.
	Start(ctx context.Context, ops vfs.Operations) error
	// Stop asks the host to detach. It may be called more than once and
	// before Start has returned.
	Stop() error
	Name() string
}

// BackendFactory creates the host for a target.
type BackendFactory func(target string, debug bool) (Backend, error)
