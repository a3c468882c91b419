package vfs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Operations is the full set of calls a driver host dispatches to the
// filesystem, one method per call. Hosts may call any method from any
// goroutine, including several at once for the same path.
type Operations interface {
	CreateFile(ctx context.Context, name string, access AccessMask, mode CreationMode, info *FileInfo) error
	Cleanup(ctx context.Context, name string, info *FileInfo)
	CloseFile(ctx context.Context, name string, info *FileInfo)
	ReadFile(ctx context.Context, name string, buf []byte, offset int64, info *FileInfo) (int, error)
	WriteFile(ctx context.Context, name string, buf []byte, offset int64, info *FileInfo) (int, error)
	FlushFileBuffers(ctx context.Context, name string, info *FileInfo) error
	GetFileInformation(ctx context.Context, name string, info *FileInfo) (FileInformation, error)
	FindFiles(ctx context.Context, name string, info *FileInfo) ([]FileInformation, error)
	FindFilesWithPattern(ctx context.Context, name, pattern string, info *FileInfo) ([]FileInformation, error)
	FindStreams(ctx context.Context, name string, info *FileInfo) ([]StreamInformation, error)
	SetFileAttributes(ctx context.Context, name string, attrs FileAttributes, info *FileInfo) error
	SetFileTime(ctx context.Context, name string, creation, access, write time.Time, info *FileInfo) error
	DeleteFile(ctx context.Context, name string, info *FileInfo) error
	DeleteDirectory(ctx context.Context, name string, info *FileInfo) error
	MoveFile(ctx context.Context, oldName, newName string, replace bool, info *FileInfo) error
	SetEndOfFile(ctx context.Context, name string, length int64, info *FileInfo) error
	SetAllocationSize(ctx context.Context, name string, length int64, info *FileInfo) error
	LockFile(ctx context.Context, name string, offset, length int64, info *FileInfo) error
	UnlockFile(ctx context.Context, name string, offset, length int64, info *FileInfo) error
	GetDiskFreeSpace(ctx context.Context) (DiskFreeSpace, error)
	GetVolumeInformation(ctx context.Context) (VolumeInformation, error)
	GetFileSecurity(ctx context.Context, name string, info *FileInfo) (SecurityDescriptor, error)
	SetFileSecurity(ctx context.Context, name string, sd SecurityDescriptor, info *FileInfo) error
	Mounted(ctx context.Context) error
	Unmounted(ctx context.Context) error
}

var _ Operations = (*FS)(nil)

// resolved returns the handle's cached resolution, or resolves name when
// the host calls without an open handle.
func (f *FS) resolved(ctx context.Context, name string, info *FileInfo) Resolved {
	if info != nil && info.Context != nil {
		return *info.Context
	}
	return f.Resolve(ctx, name)
}

// CreateFile opens an existing file or directory for reading. Any other
// disposition and any write access are refused.
func (f *FS) CreateFile(ctx context.Context, name string, access AccessMask, mode CreationMode, info *FileInfo) (err error) {
	t0 := f.opStart("CreateFile", name)
	defer func() { f.opEnd(t0, "CreateFile", name, err) }()

	if mode != OpenExisting || access&writeAccess != 0 {
		return ErrAccessDenied
	}
	r := f.Resolve(ctx, name)
	if r.Kind == KindNotFound {
		return ErrNotFound
	}
	if info != nil {
		info.Context = &r
		info.IsDirectory = r.IsDirectory()
	}
	return nil
}

func (f *FS) Cleanup(ctx context.Context, name string, info *FileInfo) {}

func (f *FS) CloseFile(ctx context.Context, name string, info *FileInfo) {
	if info != nil {
		info.Context = nil
	}
}

func (f *FS) ReadFile(ctx context.Context, name string, buf []byte, offset int64, info *FileInfo) (n int, err error) {
	t0 := f.opStart("ReadFile", name)
	defer func() { f.opEnd(t0, "ReadFile", name, err) }()

	return f.ReadRange(ctx, f.resolved(ctx, name, info), buf, offset)
}

func (f *FS) WriteFile(ctx context.Context, name string, buf []byte, offset int64, info *FileInfo) (int, error) {
	return 0, f.deny("WriteFile", name)
}

func (f *FS) FlushFileBuffers(ctx context.Context, name string, info *FileInfo) error {
	return nil
}

func (f *FS) GetFileInformation(ctx context.Context, name string, info *FileInfo) (fi FileInformation, err error) {
	t0 := f.opStart("GetFileInformation", name)
	defer func() { f.opEnd(t0, "GetFileInformation", name, err) }()

	return f.Attributes(f.resolved(ctx, name, info))
}

func (f *FS) FindFiles(ctx context.Context, name string, info *FileInfo) (entries []FileInformation, err error) {
	t0 := f.opStart("FindFiles", name)
	defer func() { f.opEnd(t0, "FindFiles", name, err) }()

	return f.List(ctx, f.resolved(ctx, name, info))
}

func (f *FS) FindFilesWithPattern(ctx context.Context, name, pattern string, info *FileInfo) ([]FileInformation, error) {
	return nil, ErrNotImplemented
}

func (f *FS) FindStreams(ctx context.Context, name string, info *FileInfo) ([]StreamInformation, error) {
	return nil, ErrNotImplemented
}

func (f *FS) SetFileAttributes(ctx context.Context, name string, attrs FileAttributes, info *FileInfo) error {
	return f.deny("SetFileAttributes", name)
}

func (f *FS) SetFileTime(ctx context.Context, name string, creation, access, write time.Time, info *FileInfo) error {
	return f.deny("SetFileTime", name)
}

func (f *FS) DeleteFile(ctx context.Context, name string, info *FileInfo) error {
	return f.deny("DeleteFile", name)
}

func (f *FS) DeleteDirectory(ctx context.Context, name string, info *FileInfo) error {
	return f.deny("DeleteDirectory", name)
}

func (f *FS) MoveFile(ctx context.Context, oldName, newName string, replace bool, info *FileInfo) error {
	return f.deny("MoveFile", oldName)
}

func (f *FS) SetEndOfFile(ctx context.Context, name string, length int64, info *FileInfo) error {
	return f.deny("SetEndOfFile", name)
}

func (f *FS) SetAllocationSize(ctx context.Context, name string, length int64, info *FileInfo) error {
	return f.deny("SetAllocationSize", name)
}

// LockFile and UnlockFile succeed without doing anything; nothing can
// change the content under a lock anyway.
func (f *FS) LockFile(ctx context.Context, name string, offset, length int64, info *FileInfo) error {
	return nil
}

func (f *FS) UnlockFile(ctx context.Context, name string, offset, length int64, info *FileInfo) error {
	return nil
}

func (f *FS) GetDiskFreeSpace(ctx context.Context) (DiskFreeSpace, error) {
	return DiskFreeSpace{}, nil
}

func (f *FS) GetVolumeInformation(ctx context.Context) (VolumeInformation, error) {
	return VolumeInformation{
		Label:              f.label,
		MaxComponentLength: 255,
		FileSystemName:     FileSystemName,
		Features: FeatureReadOnlyVolume |
			FeatureCasePreservedNames |
			FeatureCaseSensitiveSearch |
			FeaturePersistentACLs |
			FeatureSupportsRemoteStorage |
			FeatureUnicodeOnDisk |
			FeatureSupportsObjectIDs,
	}, nil
}

func (f *FS) GetFileSecurity(ctx context.Context, name string, info *FileInfo) (SecurityDescriptor, error) {
	r := f.resolved(ctx, name, info)
	if r.Kind == KindNotFound {
		return SecurityDescriptor{}, ErrNotFound
	}
	return SecurityFor(r.IsDirectory()), nil
}

func (f *FS) SetFileSecurity(ctx context.Context, name string, sd SecurityDescriptor, info *FileInfo) error {
	return f.deny("SetFileSecurity", name)
}

func (f *FS) Mounted(ctx context.Context) error {
	fmt.Fprintln(f.out, "IPFS mounted")
	f.l.Info("filesystem mounted", zap.String("label", f.label))
	return nil
}

func (f *FS) Unmounted(ctx context.Context) error {
	fmt.Fprintln(f.out, "IPFS unmounted")
	f.l.Info("filesystem unmounted")
	return nil
}

func (f *FS) deny(op, name string) error {
	f.opEnd(time.Now(), op, name, ErrAccessDenied)
	return ErrAccessDenied
}
