//go:build !windows

package main

import (
	"fmt"
	"runtime"

	"github.com/wforney/net-ipfs-mount/internal/backend/cgofuse"
	"github.com/wforney/net-ipfs-mount/internal/backend/gofuse"
	"github.com/wforney/net-ipfs-mount/internal/config"
	"github.com/wforney/net-ipfs-mount/internal/mount"
)

func newBackend(cfg *config.Config) mount.BackendFactory {
	name := resolveBackend(cfg.Backend, runtime.GOOS)
	return func(target string, debug bool) (mount.Backend, error) {
		switch name {
		case config.BackendGoFuse:
			return gofuse.New(target, gofuse.Options{Debug: debug}), nil
		case config.BackendCgoFuse:
			return cgofuse.New(target, cgofuse.Options{VolumeLabel: cfg.VolumeLabel, Debug: debug}), nil
		default:
			return nil, fmt.Errorf("unknown backend %q", name)
		}
	}
}
