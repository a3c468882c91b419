package mount

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotOwned is returned for drives mounted by another process. WinFsp
// only lets the owning process detach a FUSE drive.
var ErrNotOwned = errors.New("drive is served by another process; stop that process to unmount it")

// ExternalUnmount reports that target cannot be detached from here.
func ExternalUnmount(ctx context.Context, target string) error {
	return fmt.Errorf("unmount %s: %w", target, ErrNotOwned)
}
