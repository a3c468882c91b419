package vfs

import (
	"time"

	"github.com/wforney/net-ipfs-mount/internal/resources"
	"github.com/wforney/net-ipfs-mount/internal/store"
)

// Kind classifies a resolved path.
type Kind int

const (
	KindNotFound Kind = iota
	KindRoot
	KindCategory
	KindStatic
	KindNode
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindCategory:
		return "category"
	case KindStatic:
		return "static"
	case KindNode:
		return "node"
	default:
		return "not-found"
	}
}

// Category folders at the root of the mount.
const (
	CategoryIPFS = "ipfs"
	CategoryIPNS = "ipns"
)

// Resolved is what a path refers to. Exactly one of Category, Static or
// Node is set, according to Kind.
type Resolved struct {
	Kind     Kind
	Path     string // separator-normalized, always starting with "/"
	Category string
	Static   *resources.Resource
	Node     *store.Node
}

// IsDirectory reports whether the path can be enumerated.
func (r Resolved) IsDirectory() bool {
	switch r.Kind {
	case KindRoot, KindCategory:
		return true
	case KindNode:
		return r.Node.IsDirectory
	}
	return false
}

// FileInfo is the per-handle state the host keeps between CreateFile and
// CloseFile. A nil Context means the handle was never opened and the path
// is resolved again.
type FileInfo struct {
	Context     *Resolved
	IsDirectory bool
}

// FileAttributes are Win32 style file attribute bits.
type FileAttributes uint32

const (
	AttrReadOnly  FileAttributes = 0x00000001
	AttrDirectory FileAttributes = 0x00000010
	AttrNormal    FileAttributes = 0x00000080
)

// FileInformation describes one file or directory.
type FileInformation struct {
	Name           string
	Size           int64
	IsDirectory    bool
	Attributes     FileAttributes
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
}

// StreamInformation describes an alternate data stream.
type StreamInformation struct {
	Name string
	Size int64
}

// AccessMask holds the access rights requested by an open.
type AccessMask uint32

const (
	AccessReadData        AccessMask = 0x00000001
	AccessWriteData       AccessMask = 0x00000002
	AccessAppendData      AccessMask = 0x00000004
	AccessWriteEA         AccessMask = 0x00000010
	AccessWriteAttributes AccessMask = 0x00000100
	AccessDelete          AccessMask = 0x00010000
	AccessWriteDAC        AccessMask = 0x00040000
	AccessWriteOwner      AccessMask = 0x00080000
	AccessGenericWrite    AccessMask = 0x40000000
	AccessGenericRead     AccessMask = 0x80000000
)

// writeAccess is every right that would let a handle modify something.
const writeAccess = AccessWriteData | AccessAppendData | AccessWriteEA | AccessWriteAttributes |
	AccessDelete | AccessWriteDAC | AccessWriteOwner | AccessGenericWrite

// CreationMode is the disposition of an open, with Win32 values.
type CreationMode uint32

const (
	CreateNew        CreationMode = 1
	CreateAlways     CreationMode = 2
	OpenExisting     CreationMode = 3
	OpenAlways       CreationMode = 4
	TruncateExisting CreationMode = 5
)

// FileSystemFeatures are Win32 volume feature flags.
type FileSystemFeatures uint32

const (
	FeatureCaseSensitiveSearch   FileSystemFeatures = 0x00000001
	FeatureCasePreservedNames    FileSystemFeatures = 0x00000002
	FeatureUnicodeOnDisk         FileSystemFeatures = 0x00000004
	FeaturePersistentACLs        FileSystemFeatures = 0x00000008
	FeatureSupportsRemoteStorage FileSystemFeatures = 0x00000100
	FeatureSupportsObjectIDs     FileSystemFeatures = 0x00010000
	FeatureReadOnlyVolume        FileSystemFeatures = 0x00080000
)

// VolumeInformation describes the mounted volume.
type VolumeInformation struct {
	Label              string
	SerialNumber       uint32
	MaxComponentLength uint32
	Features           FileSystemFeatures
	FileSystemName     string
}

// DiskFreeSpace reports capacity. The store has no meaningful capacity so
// all values are zero.
type DiskFreeSpace struct {
	FreeBytesAvailable uint64
	TotalBytes         uint64
	TotalFreeBytes     uint64
}
