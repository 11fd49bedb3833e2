package cache

import (
	"sync"

	"github.com/evanw/packcore/internal/fs"
)

// This cache uses the file's modification key to avoid reading files again
// in later builds if they haven't changed. Reading the metadata is assumed to
// be faster than reading the contents.

type FSCache struct {
	entries map[string]*fsEntry
	mutex   sync.Mutex
}

type fsEntry struct {
	contents       string
	modKey         fs.ModKey
	isModKeyUsable bool
}

func (c *FSCache) ReadFile(fs fs.FS, path string) (string, error) {
	entry := func() *fsEntry {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		return c.entries[path]
	}()

	modKey, modKeyErr := fs.ModKey(path)
	if entry != nil && entry.isModKeyUsable && modKeyErr == nil && entry.modKey == modKey {
		return entry.contents, nil
	}

	contents, err := fs.ReadFile(path)
	if err != nil {
		return "", err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[path] = &fsEntry{
		contents:       contents,
		modKey:         modKey,
		isModKeyUsable: modKeyErr == nil,
	}
	return contents, nil
}
