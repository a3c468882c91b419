package vfs

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wforney/net-ipfs-mount/internal/metrics"
	"github.com/wforney/net-ipfs-mount/internal/store"
)

// List returns the entries of a directory. Listings are built in full
// before they are returned.
func (f *FS) List(ctx context.Context, r Resolved) ([]FileInformation, error) {
	switch r.Kind {
	case KindRoot:
		return f.listRoot(), nil
	case KindCategory:
		if r.Category == CategoryIPFS {
			return f.listPinned(ctx)
		}
		// IPNS names can be opened but not enumerated.
		return []FileInformation{}, nil
	case KindNode:
		if !r.Node.IsDirectory {
			return nil, ErrNotADirectory
		}
		return f.listLinks(r.Node), nil
	case KindStatic:
		return nil, ErrNotADirectory
	}
	return nil, ErrNotFound
}

func (f *FS) listRoot() []FileInformation {
	now := f.now()
	entries := make([]FileInformation, 0, 2+f.statics.Len())
	for _, name := range []string{CategoryIPFS, CategoryIPNS} {
		entries = append(entries, FileInformation{
			Name:           name,
			IsDirectory:    true,
			Attributes:     attributesFor(true),
			CreationTime:   now,
			LastAccessTime: now,
			LastWriteTime:  now,
		})
	}
	for _, res := range f.statics.All() {
		info := FileInformation{
			Name:       res.Name(),
			Size:       res.Size(),
			Attributes: attributesFor(false),
		}
		f.stamp(&info)
		entries = append(entries, info)
	}
	return entries
}

// listPinned resolves every pinned id to a node. Ids that fail to resolve
// are left out of the listing.
func (f *FS) listPinned(ctx context.Context) ([]FileInformation, error) {
	ids, err := f.store.ListPinned(ctx)
	if err != nil {
		f.l.Debug("list pinned failed", zap.Error(err))
		return nil, ErrNotFound
	}

	nodes := make([]*store.Node, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			node, err := f.store.GetNode(ctx, id)
			if err != nil {
				f.l.Debug("skipping pinned object", zap.String("id", id), zap.Error(err))
				return nil
			}
			nodes[i] = node
			return nil
		})
	}
	// lookups never fail the group; unresolvable pins are left nil
	_ = g.Wait()

	entries := make([]FileInformation, 0, len(ids))
	for i, node := range nodes {
		if node == nil {
			continue
		}
		info := FileInformation{
			Name:        ids[i],
			Size:        node.Size,
			IsDirectory: node.IsDirectory,
			Attributes:  attributesFor(node.IsDirectory),
		}
		f.stamp(&info)
		entries = append(entries, info)
	}
	if skipped := len(ids) - len(entries); skipped > 0 {
		metrics.RecordPinnedSkipped(skipped)
	}
	return entries, nil
}

func (f *FS) listLinks(node *store.Node) []FileInformation {
	entries := make([]FileInformation, 0, len(node.Links))
	for _, link := range node.Links {
		info := FileInformation{
			Name:        link.Name,
			Size:        link.Size,
			IsDirectory: link.IsDirectory,
			Attributes:  attributesFor(link.IsDirectory),
		}
		f.stamp(&info)
		entries = append(entries, info)
	}
	return entries
}
