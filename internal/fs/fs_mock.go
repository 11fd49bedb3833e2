package fs

// This is an in-memory implementation for tests. It records every output
// operation so tests can check what was written, and writes to specific
// files can be made to fail.

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
)

type OpKind uint8

const (
	OpCreateDirAll OpKind = iota
	OpWrite
	OpRemoveFile
	OpRemoveDirAll
)

func (kind OpKind) String() string {
	switch kind {
	case OpCreateDirAll:
		return "mkdir"
	case OpWrite:
		return "write"
	case OpRemoveFile:
		return "rm"
	default:
		return "rm -r"
	}
}

type Op struct {
	Kind OpKind
	Path string
}

func (op Op) String() string {
	return op.Kind.String() + " " + op.Path
}

type MockFS struct {
	mutex    sync.Mutex
	files    map[string]string
	dirs     map[string]bool
	versions map[string]int64
	failures map[string]error
	ops      []Op
}

func NewMockFS(files map[string]string) *MockFS {
	fs := &MockFS{
		files:    make(map[string]string),
		dirs:     make(map[string]bool),
		versions: make(map[string]int64),
		failures: make(map[string]error),
	}
	for file, contents := range files {
		file = path.Clean(file)
		fs.files[file] = contents
		fs.versions[file] = 1
		fs.addParentDirs(file)
	}
	return fs
}

func (fs *MockFS) addParentDirs(file string) {
	for dir := path.Dir(file); dir != "." && dir != "/"; dir = path.Dir(dir) {
		fs.dirs[dir] = true
	}
}

// Makes every following write to "file" fail with "err"
func (fs *MockFS) FailWrite(file string, err error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.failures[path.Clean(file)] = err
}

// Output operations in the order they happened. Writes run concurrently so
// tests should sort or count instead of relying on the order between them.
func (fs *MockFS) Ops() []Op {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return append([]Op{}, fs.ops...)
}

func (fs *MockFS) ResetOps() {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.ops = nil
}

// The files currently stored, in sorted order
func (fs *MockFS) Paths() []string {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	paths := make([]string, 0, len(fs.files))
	for file := range fs.files {
		paths = append(paths, file)
	}
	sort.Strings(paths)
	return paths
}

func (fs *MockFS) HasDir(dir string) bool {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.dirs[path.Clean(dir)]
}

func (fs *MockFS) ReadFile(file string) (string, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	contents, ok := fs.files[path.Clean(file)]
	if !ok {
		return "", fmt.Errorf("open %s: %w", file, syscall.ENOENT)
	}
	return contents, nil
}

func (fs *MockFS) ModKey(file string) (ModKey, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	file = path.Clean(file)
	contents, ok := fs.files[file]
	if !ok {
		return ModKey{}, fmt.Errorf("stat %s: %w", file, syscall.ENOENT)
	}
	return ModKey{size: int64(len(contents)), mtimeSec: fs.versions[file]}, nil
}

func (fs *MockFS) record(kind OpKind, p string) {
	fs.ops = append(fs.ops, Op{Kind: kind, Path: p})
}

func (fs *MockFS) CreateDirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	dir = path.Clean(dir)
	fs.record(OpCreateDirAll, dir)
	if _, ok := fs.files[dir]; ok {
		return fmt.Errorf("mkdir %s: %w", dir, syscall.ENOTDIR)
	}
	fs.dirs[dir] = true
	fs.addParentDirs(dir)
	return nil
}

func (fs *MockFS) Write(ctx context.Context, file string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	file = path.Clean(file)
	fs.record(OpWrite, file)
	if err := fs.failures[file]; err != nil {
		return err
	}
	if dir := path.Dir(file); dir != "." && dir != "/" && !fs.dirs[dir] {
		return fmt.Errorf("open %s: %w", file, syscall.ENOENT)
	}
	fs.files[file] = string(data)
	fs.versions[file]++
	return nil
}

func (fs *MockFS) RemoveFile(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	file = path.Clean(file)
	fs.record(OpRemoveFile, file)
	if _, ok := fs.files[file]; !ok {
		return fmt.Errorf("remove %s: %w", file, syscall.ENOENT)
	}
	delete(fs.files, file)
	return nil
}

func (fs *MockFS) RemoveDirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	dir = path.Clean(dir)
	fs.record(OpRemoveDirAll, dir)
	prefix := dir + "/"
	for file := range fs.files {
		if file == dir || strings.HasPrefix(file, prefix) {
			delete(fs.files, file)
		}
	}
	for d := range fs.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(fs.dirs, d)
		}
	}
	return nil
}
