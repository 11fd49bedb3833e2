package config_test

import (
	"testing"

	"github.com/evanw/packcore/internal/config"
	"github.com/evanw/packcore/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	options := config.Options{}
	options.Normalize()
	assert.Equal(t, ".", options.Context)
	assert.Equal(t, "dist", options.Output.Path)
	assert.Equal(t, config.DefaultWorkerSyntax, options.WorkerSyntax)
	assert.Equal(t, config.DefaultResolverCacheSize, options.ResolverCacheSize)
	assert.Greater(t, options.Concurrency, 0)
}

func TestValidate(t *testing.T) {
	options := config.Options{
		Entry:           map[string]string{"main": "./a.js", "other": " "},
		SideEffectsFree: []string{"src/[a-"},
		LibraryTypes:    []string{"module", "bogus"},
		Concurrency:     -1,
	}
	log := logger.NewDeferLog()
	options.Validate(log)
	msgs := log.Done()

	errors := logger.MsgsOfKind(logger.Error, msgs)
	warnings := logger.MsgsOfKind(logger.Warning, msgs)
	require.Len(t, errors, 4)
	require.Len(t, warnings, 1)
	assert.Equal(t, `Unknown library type "bogus"`, warnings[0].Text)
}

func TestIsTreeShakingEnabled(t *testing.T) {
	assert.False(t, (&config.Options{}).IsTreeShakingEnabled())
	assert.True(t, (&config.Options{TreeShaking: true}).IsTreeShakingEnabled())
	assert.True(t, (&config.Options{LibraryTypes: []string{"commonjs-static"}}).IsTreeShakingEnabled())
	assert.False(t, (&config.Options{LibraryTypes: []string{"umd"}}).IsTreeShakingEnabled())
}

func TestIsSideEffectFree(t *testing.T) {
	options := config.Options{SideEffectsFree: []string{"src/utils/**", "**/*.css"}}
	assert.True(t, options.IsSideEffectFree("./src/utils/math/add.js"))
	assert.True(t, options.IsSideEffectFree("styles/site.css"))
	assert.False(t, options.IsSideEffectFree("./src/index.js"))
}

func TestEntryNames(t *testing.T) {
	options := config.Options{Entry: map[string]string{"b": "./b", "a": "./a"}}
	assert.Equal(t, []string{"a", "b"}, options.EntryNames())
}
