package fs

import (
	"context"
	"errors"
)

// Where generated assets go. Paths use forward slashes and are relative to
// the implementation's root unless they are absolute. Every operation blocks
// until it completed.
type OutputFS interface {
	CreateDirAll(ctx context.Context, dir string) error
	Write(ctx context.Context, file string, data []byte) error
	RemoveFile(ctx context.Context, file string) error
	RemoveDirAll(ctx context.Context, dir string) error
}

// Where module sources come from
type FS interface {
	ReadFile(path string) (string, error)

	// A key that changes whenever the file changes. Returns an error if the
	// file system can't provide one, in which case callers must read the
	// file instead.
	ModKey(path string) (ModKey, error)
}

// Identifies one version of a file from its metadata alone
type ModKey struct {
	inode     uint64
	size      int64
	mtimeSec  int64
	mtimeNsec int64
	mode      uint32
}

// Files modified within this many seconds of now don't get a key. Some file
// systems have a coarse modification time and a second write within the
// same tick would go unnoticed.
const modKeySafetyGap = 3

var errModKeyUnusable = errors.New("the modification key is unusable")
