// Package vfs translates filesystem requests into IPFS lookups.
//
// The mount root holds two category folders, ipfs and ipns, plus the bundled
// resources. Every other path is handed to the store as-is, with the host
// separator replaced by "/", so /ipfs/<cid>/a/b and /ipns/<name>/a both work.
package vfs

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/logging"
	"github.com/wforney/net-ipfs-mount/internal/resources"
	"github.com/wforney/net-ipfs-mount/internal/store"
)

// Store is the subset of the IPFS client the translation layer needs.
type Store interface {
	GetNode(ctx context.Context, path string) (*store.Node, error)
	ReadRange(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error)
	ListPinned(ctx context.Context) ([]string, error)
}

// Options configures an FS.
type Options struct {
	// Separator is the path separator used by the host, '/' by default.
	Separator rune
	// VolumeLabel defaults to "Interplanetary".
	VolumeLabel string
	// ListConcurrency bounds the lookups made while listing pinned objects.
	ListConcurrency int
	// Now defaults to time.Now.
	Now func() time.Time
	// Out receives the mounted and unmounted notices, os.Stdout by default.
	Out    io.Writer
	Logger *zap.Logger
}

// DefaultVolumeLabel is the label shown by hosts that display one.
const DefaultVolumeLabel = "Interplanetary"

// FileSystemName is reported in the volume information.
const FileSystemName = "IPFS"

// FS implements Operations on top of a Store and a resource table.
// It holds no mutable state and is safe for concurrent use.
type FS struct {
	store       Store
	statics     *resources.Table
	sep         string
	label       string
	concurrency int
	now         func() time.Time
	out         io.Writer
	l           *zap.Logger
	started     time.Time
}

// New creates a filesystem.
func New(st Store, statics *resources.Table, opts Options) *FS {
	if opts.Separator == 0 {
		opts.Separator = '/'
	}
	if opts.VolumeLabel == "" {
		opts.VolumeLabel = DefaultVolumeLabel
	}
	if opts.ListConcurrency <= 0 {
		opts.ListConcurrency = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("vfs")
	}

	return &FS{
		store:       st,
		statics:     statics,
		sep:         string(opts.Separator),
		label:       opts.VolumeLabel,
		concurrency: opts.ListConcurrency,
		now:         opts.Now,
		out:         opts.Out,
		l:           opts.Logger,
		started:     opts.Now(),
	}
}

// normalize converts a host path into a "/" separated path with a single
// leading separator and no trailing one.
func (f *FS) normalize(name string) string {
	p := name
	if f.sep != "/" {
		p = strings.ReplaceAll(p, f.sep, "/")
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return p
}

// Resolve classifies a path. Anything that is not the root, a category
// folder or a bundled resource costs exactly one store lookup; a failed
// lookup of any kind resolves to KindNotFound.
func (f *FS) Resolve(ctx context.Context, name string) Resolved {
	p := f.normalize(name)

	switch p {
	case "/":
		return Resolved{Kind: KindRoot, Path: p}
	case "/" + CategoryIPFS:
		return Resolved{Kind: KindCategory, Path: p, Category: CategoryIPFS}
	case "/" + CategoryIPNS:
		return Resolved{Kind: KindCategory, Path: p, Category: CategoryIPNS}
	}

	if r, ok := f.statics.Lookup(p); ok {
		return Resolved{Kind: KindStatic, Path: p, Static: r}
	}

	node, err := f.store.GetNode(ctx, p)
	if err != nil {
		f.l.Debug("lookup failed", zap.String("path", p), zap.Error(err))
		return Resolved{Kind: KindNotFound, Path: p}
	}
	return Resolved{Kind: KindNode, Path: p, Node: node}
}

// Attributes returns size, kind and timestamps of a resolved path.
func (f *FS) Attributes(r Resolved) (FileInformation, error) {
	info := FileInformation{Name: baseName(r.Path)}

	switch r.Kind {
	case KindRoot, KindCategory:
		now := f.now()
		info.IsDirectory = true
		info.CreationTime, info.LastAccessTime, info.LastWriteTime = now, now, now
	case KindStatic:
		info.Size = r.Static.Size()
		f.stamp(&info)
	case KindNode:
		info.IsDirectory = r.Node.IsDirectory
		info.Size = r.Node.Size
		f.stamp(&info)
	default:
		return FileInformation{}, ErrNotFound
	}

	info.Attributes = attributesFor(info.IsDirectory)
	return info, nil
}

// stamp sets the timestamps of content that has none of its own. Store
// objects are immutable, so the mount time is as good as any.
func (f *FS) stamp(info *FileInformation) {
	info.CreationTime = f.started
	info.LastAccessTime = f.started
	info.LastWriteTime = f.started
}

func attributesFor(isDirectory bool) FileAttributes {
	if isDirectory {
		return AttrReadOnly | AttrDirectory
	}
	return AttrReadOnly
}

func baseName(p string) string {
	if p == "/" {
		return ""
	}
	return p[strings.LastIndexByte(p, '/')+1:]
}
