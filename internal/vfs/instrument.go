package vfs

import (
	"time"

	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/metrics"
)

func (f *FS) opStart(op, name string) time.Time {
	if ce := f.l.Check(zap.DebugLevel, "Start"); ce != nil {
		ce.Write(zap.String("op", op), zap.String("path", name))
	}
	return time.Now()
}

func (f *FS) opEnd(t0 time.Time, op, name string, err error) {
	d := time.Since(t0)
	metrics.RecordOperation(op, d, err)
	if ce := f.l.Check(zap.DebugLevel, "End"); ce != nil {
		ce.Write(zap.String("op", op), zap.String("path", name), zap.Duration("duration", d), zap.Error(err))
	}
}
