package unarchive

import (
	"context"
	"hash/crc32"
	"io/fs"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive/pool"
)

func TestInspect(t *testing.T) {
	ctx := context.Background()
	m := newManifest(
		dirEntry("app", 0o755),
		fileEntry("app/same.txt", "hello", 0o644),
		fileEntry("app/longer.txt", "hello", 0o644),
		fileEntry("app/new.txt", "hello", 0o644),
		fileEntry("lib/deep/x.so", "elf", 0o755),
	)

	fsys := afero.NewMemMapFs()
	assert.NoError(t, fsys.MkdirAll("/dest/app", 0o750))
	assert.NoError(t, afero.WriteFile(fsys, "/dest/app/same.txt", []byte("hello"), 0o600))
	assert.NoError(t, afero.WriteFile(fsys, "/dest/app/longer.txt", []byte("hello world"), 0o644))

	snap, err := Inspect(ctx, fsys, "/dest", m, 2)
	assert.NoError(t, err)

	t.Run("records existing directories", func(t *testing.T) {
		state := snap["app"]
		assert.True(t, state.Exists)
		assert.Equal(t, TypeDir, state.Type)
		assert.Equal(t, fs.FileMode(0o750), state.Mode)
	})

	t.Run("checksums files whose size matches", func(t *testing.T) {
		state := snap["app/same.txt"]
		assert.True(t, state.Exists)
		assert.True(t, state.crcKnown)
		assert.Equal(t, crc32.ChecksumIEEE([]byte("hello")), state.CRC32)
		assert.Equal(t, fs.FileMode(0o600), state.Mode)
	})

	t.Run("skips checksumming files whose size differs", func(t *testing.T) {
		state := snap["app/longer.txt"]
		assert.True(t, state.Exists)
		assert.Equal(t, int64(11), state.Size)
		assert.False(t, state.crcKnown)
	})

	t.Run("records missing entries and their ancestors", func(t *testing.T) {
		assert.False(t, snap["app/new.txt"].Exists)
		assert.False(t, snap["lib"].Exists)
		assert.False(t, snap["lib/deep"].Exists)

		_, ok := snap["lib/deep/x.so"]
		assert.True(t, ok)
	})

	t.Run("does not modify the destination", func(t *testing.T) {
		exists, err := afero.Exists(fsys, "/dest/app/new.txt")
		assert.NoError(t, err)
		assert.False(t, exists)

		exists, err = afero.Exists(fsys, "/dest/lib")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("treats children of files as missing", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		assert.NoError(t, afero.WriteFile(fsys, "/dest/app", []byte("not a dir"), 0o644))

		snap, err := Inspect(ctx, fsys, "/dest", newManifest(fileEntry("app/a.txt", "a", 0o644)), 1)
		assert.NoError(t, err)

		assert.Equal(t, TypeFile, snap["app"].Type)
		assert.False(t, snap["app/a.txt"].Exists)
	})

	t.Run("refuses a checksum concurrency below one", func(t *testing.T) {
		_, err := Inspect(ctx, fsys, "/dest", m, 0)
		assert.IsError(t, err, pool.ErrMinConcurrency)
	})
}
