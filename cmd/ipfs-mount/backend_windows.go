//go:build windows

package main

import (
	"fmt"

	"github.com/wforney/net-ipfs-mount/internal/backend/cgofuse"
	"github.com/wforney/net-ipfs-mount/internal/config"
	"github.com/wforney/net-ipfs-mount/internal/mount"
)

// Only WinFsp through cgofuse is available on Windows.
func newBackend(cfg *config.Config) mount.BackendFactory {
	name := resolveBackend(cfg.Backend, "windows")
	return func(target string, debug bool) (mount.Backend, error) {
		if name != config.BackendCgoFuse {
			return nil, fmt.Errorf("backend %q is not available on windows", name)
		}
		return cgofuse.New(target, cgofuse.Options{VolumeLabel: cfg.VolumeLabel, Debug: debug}), nil
	}
}
