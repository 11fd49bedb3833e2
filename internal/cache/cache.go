package cache

import (
	"sync"

	"github.com/evanw/packcore/internal/runtime"
)

// State that survives from one build to the next. A build must only reuse
// an entry if everything the entry was derived from is part of its key:
//
//   - Generated code depends on the module's own source, on how its exports
//     and the exports of every module it references are used, and on the ids
//     those modules were given. Code generation keys are built from all of
//     these.
//
//   - File contents are reused only while the file's modification key is
//     unchanged.
//
// The idle signal is advisory. Nothing here blocks while a build runs.
type CacheSet struct {
	FSCache      FSCache
	CodeGenCache CodeGenCache

	mutex  sync.Mutex
	idle   bool
	builds int
}

func MakeCacheSet() *CacheSet {
	return &CacheSet{
		FSCache: FSCache{
			entries: make(map[string]*fsEntry),
		},
		CodeGenCache: CodeGenCache{
			entries: make(map[string]*codeGenEntry),
		},
		idle: true,
	}
}

// Called when a build starts
func (c *CacheSet) EndIdle() {
	c.mutex.Lock()
	c.idle = false
	c.builds++
	build := c.builds
	c.mutex.Unlock()

	// Entries that the previous build didn't use are stale
	c.CodeGenCache.prune(build - 1)
}

// Called once the module graph of the current build is final
func (c *CacheSet) BeginIdle() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.idle = true
}

func (c *CacheSet) IsIdle() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.idle
}

func (c *CacheSet) currentBuild() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.builds
}

type CodeGenResult struct {
	Source              string
	RuntimeRequirements runtime.Globals
}

type CodeGenCache struct {
	entries map[string]*codeGenEntry
	mutex   sync.Mutex
	hits    int
	misses  int
}

type codeGenEntry struct {
	result    CodeGenResult
	lastBuild int
}

func (c *CacheSet) GetCodeGen(key string) (CodeGenResult, bool) {
	build := c.currentBuild()
	cache := &c.CodeGenCache
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	entry, ok := cache.entries[key]
	if !ok {
		cache.misses++
		return CodeGenResult{}, false
	}
	cache.hits++
	entry.lastBuild = build
	return entry.result, true
}

func (c *CacheSet) StoreCodeGen(key string, result CodeGenResult) {
	build := c.currentBuild()
	cache := &c.CodeGenCache
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.entries[key] = &codeGenEntry{result: result, lastBuild: build}
}

// Hits and misses of the current build
func (c *CodeGenCache) Stats() (hits int, misses int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.hits, c.misses
}

func (c *CodeGenCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries)
}

func (c *CodeGenCache) prune(oldestBuild int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key, entry := range c.entries {
		if entry.lastBuild < oldestBuild {
			delete(c.entries, key)
		}
	}
	c.hits = 0
	c.misses = 0
}
