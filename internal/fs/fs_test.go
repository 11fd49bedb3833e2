package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFSOutput(t *testing.T) {
	ctx := context.Background()
	fs := NewMockFS(map[string]string{"dist/old.js": "old"})
	assert.True(t, fs.HasDir("dist"))

	require.NoError(t, fs.CreateDirAll(ctx, "dist/nested"))
	require.NoError(t, fs.Write(ctx, "dist/nested/a.js", []byte("a")))
	assert.Error(t, fs.Write(ctx, "missing/a.js", []byte("a")))

	contents, err := fs.ReadFile("dist/nested/a.js")
	require.NoError(t, err)
	assert.Equal(t, "a", contents)

	require.NoError(t, fs.RemoveFile(ctx, "dist/old.js"))
	assert.Error(t, fs.RemoveFile(ctx, "dist/old.js"))
	assert.Equal(t, []string{"dist/nested/a.js"}, fs.Paths())

	require.NoError(t, fs.RemoveDirAll(ctx, "dist"))
	assert.Empty(t, fs.Paths())
	assert.False(t, fs.HasDir("dist/nested"))

	var ops []string
	for _, op := range fs.Ops() {
		ops = append(ops, op.String())
	}
	assert.Equal(t, []string{
		"mkdir dist/nested",
		"write dist/nested/a.js",
		"write missing/a.js",
		"rm dist/old.js",
		"rm dist/old.js",
		"rm -r dist",
	}, ops)
}

func TestMockFSFailures(t *testing.T) {
	ctx := context.Background()
	fs := NewMockFS(nil)
	boom := errors.New("boom")
	fs.FailWrite("./b.js", boom)
	require.NoError(t, fs.Write(ctx, "a.js", nil))
	assert.ErrorIs(t, fs.Write(ctx, "b.js", nil), boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, fs.Write(cancelled, "c.js", nil), context.Canceled)
}

func TestMockFSModKey(t *testing.T) {
	ctx := context.Background()
	fs := NewMockFS(map[string]string{"src/a.js": "1"})
	before, err := fs.ModKey("src/a.js")
	require.NoError(t, err)
	again, err := fs.ModKey("src/a.js")
	require.NoError(t, err)
	assert.Equal(t, before, again)

	require.NoError(t, fs.Write(ctx, "src/a.js", []byte("2")))
	after, err := fs.ModKey("src/a.js")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	_, err = fs.ModKey("src/missing.js")
	assert.Error(t, err)
}

func TestRealFS(t *testing.T) {
	ctx := context.Background()
	fs := RealFS{Root: t.TempDir()}
	require.NoError(t, fs.CreateDirAll(ctx, "out/js"))
	require.NoError(t, fs.Write(ctx, "out/js/main.js", []byte("main")))

	contents, err := fs.ReadFile("out/js/main.js")
	require.NoError(t, err)
	assert.Equal(t, "main", contents)

	// The file was just written so it is too new for a key
	_, err = fs.ModKey("out/js/main.js")
	assert.ErrorIs(t, err, errModKeyUnusable)

	require.NoError(t, fs.RemoveFile(ctx, "out/js/main.js"))
	_, err = os.Stat(filepath.Join(fs.Root, "out", "js", "main.js"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, fs.RemoveDirAll(ctx, "out"))
	_, err = os.Stat(filepath.Join(fs.Root, "out"))
	assert.True(t, os.IsNotExist(err))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "main.js", objectKey("", "main.js"))
	assert.Equal(t, "site/v1/js/main.js", objectKey("site/v1", "js/main.js"))
	assert.Equal(t, "site/main.js", objectKey("site", "/main.js"))
	assert.Equal(t, "site", objectKey("site", "."))
}

func TestNewMinioFS(t *testing.T) {
	_, err := NewMinioFS(MinioOptions{Endpoint: "localhost:9000"}, zerolog.Nop())
	assert.Error(t, err)

	fs, err := NewMinioFS(MinioOptions{Endpoint: "localhost:9000", Bucket: "assets", Prefix: "/site/"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "site/js/main.js", fs.key("js/main.js"))
	require.NoError(t, fs.CreateDirAll(context.Background(), "js"))
}
