package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/metrics"
)

// ReadRange fills buf with content starting at offset and returns the byte
// count. Zero bytes with a nil error means end of file.
func (f *FS) ReadRange(ctx context.Context, r Resolved, buf []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, ErrInvalidArgument
	}

	switch r.Kind {
	case KindStatic:
		data := r.Static.Data
		if offset >= int64(len(data)) {
			return 0, nil
		}
		n := copy(buf, data[offset:])
		metrics.RecordRead("static", n)
		return n, nil
	case KindNode:
		if r.Node.IsDirectory {
			return 0, ErrIsADirectory
		}
		n, err := f.readNode(ctx, r, buf, offset)
		if err != nil {
			f.l.Debug("read failed", zap.String("path", r.Path), zap.Int64("offset", offset), zap.Error(err))
			return 0, fmt.Errorf("read %s: %w", r.Path, ErrNotFound)
		}
		metrics.RecordRead("store", n)
		return n, nil
	case KindRoot, KindCategory:
		return 0, ErrIsADirectory
	}
	return 0, ErrNotFound
}

// readNode keeps reading from the range stream until buf is full or the
// stream runs dry. The store assembles content from nested blocks, so a
// single Read may return far less than was asked for.
func (f *FS) readNode(ctx context.Context, r Resolved, buf []byte, offset int64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if r.Node.Size > 0 && offset >= r.Node.Size {
		return 0, nil
	}

	rc, err := f.store.ReadRange(ctx, r.Node.ID, offset, int64(len(buf)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	total := 0
	for total < len(buf) {
		n, err := rc.Read(buf[total:])
		total += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
