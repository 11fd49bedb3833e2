package fs

import (
	"context"
	"os"
	"path/filepath"
)

// The local disk. Relative paths are relative to "Root".
type RealFS struct {
	Root string
}

func (fs RealFS) abs(path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) || fs.Root == "" {
		return path
	}
	return filepath.Join(fs.Root, path)
}

func (fs RealFS) ReadFile(path string) (string, error) {
	bytes, err := os.ReadFile(fs.abs(path))
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (fs RealFS) ModKey(path string) (ModKey, error) {
	return modKey(fs.abs(path))
}

func (fs RealFS) CreateDirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(fs.abs(dir), 0o755)
}

func (fs RealFS) Write(ctx context.Context, file string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.WriteFile(fs.abs(file), data, 0o644)
}

func (fs RealFS) RemoveFile(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Remove(fs.abs(file))
}

func (fs RealFS) RemoveDirAll(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(fs.abs(dir))
}
