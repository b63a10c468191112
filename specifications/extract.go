package specifications

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive"
	"github.com/ybirader/unarchive/internal/testutils"
)

// Extractor runs a single request and returns the outcome the way a caller sees it.
type Extractor interface {
	Extract(ctx context.Context, req unarchive.Request) (*unarchive.Outcome, error)
}

var fixtures = map[string]string{
	"tar":    "foo.tar",
	"tar.gz": "foo.tar.gz",
	"zip":    "foo.zip",
}

// Extract runs every acceptance specification against driver.
func Extract(t *testing.T, driver Extractor) {
	t.Run("extracts every format idempotently", func(t *testing.T) {
		ExtractIdempotently(t, driver)
	})
	t.Run("skips when creates exists", func(t *testing.T) {
		SkipWhenCreatesExists(t, driver)
	})
	t.Run("reconciles permissions", func(t *testing.T) {
		ReconcileMode(t, driver)
	})
	t.Run("reports failures", func(t *testing.T) {
		ReportFailure(t, driver)
	})
}

func ExtractIdempotently(t *testing.T, driver Extractor) {
	for format, name := range fixtures {
		src := writeFixture(t, format, name)
		dest := t.TempDir()
		req := unarchive.Request{Src: src, Dest: dest}

		outcome, err := driver.Extract(context.Background(), req)
		assert.NoError(t, err)
		assert.True(t, outcome.Changed, format)

		info, err := os.Stat(filepath.Join(dest, "foo.txt"))
		assert.NoError(t, err)
		assert.True(t, info.Mode().IsRegular(), format)

		outcome, err = driver.Extract(context.Background(), req)
		assert.NoError(t, err)
		assert.False(t, outcome.Changed, format)
	}
}

func SkipWhenCreatesExists(t *testing.T, driver Extractor) {
	dest := t.TempDir()
	creates := filepath.Join(dest, "foo.txt")
	assert.NoError(t, os.WriteFile(creates, []byte("foo"), 0o644))

	outcome, err := driver.Extract(context.Background(), unarchive.Request{
		Src:     filepath.Join(t.TempDir(), "missing.tar.gz"),
		Dest:    dest,
		Creates: creates,
	})
	assert.NoError(t, err)

	assert.True(t, outcome.Skipped)
	assert.False(t, outcome.Changed)
}

func ReconcileMode(t *testing.T, driver Extractor) {
	src := writeFixture(t, "tar.gz", fixtures["tar.gz"])
	dest := t.TempDir()
	target := filepath.Join(dest, "foo.txt")

	_, err := driver.Extract(context.Background(), unarchive.Request{Src: src, Dest: dest})
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), stat(t, target).Mode().Perm())

	req := unarchive.Request{Src: src, Dest: dest, Mode: "u+rwX,g-rwx,o-rwx"}
	outcome, err := driver.Extract(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, outcome.Changed)
	assert.Equal(t, os.FileMode(0o600), stat(t, target).Mode().Perm())

	outcome, err = driver.Extract(context.Background(), req)
	assert.NoError(t, err)
	assert.False(t, outcome.Changed)
}

func ReportFailure(t *testing.T, driver Extractor) {
	outcome, err := driver.Extract(context.Background(), unarchive.Request{
		Src:  filepath.Join(t.TempDir(), "missing.zip"),
		Dest: t.TempDir(),
	})
	assert.Error(t, err)

	assert.True(t, outcome.Failed)
	assert.Equal(t, unarchive.KindSourceNotFound, outcome.Kind)
}

func writeFixture(t *testing.T, format, name string) string {
	t.Helper()

	src := filepath.Join(t.TempDir(), name)
	testutils.WriteArchive(t, afero.NewOsFs(), src, format, testutils.Entry{Name: "foo.txt", Body: "foo"})

	return src
}

func stat(t *testing.T, name string) os.FileInfo {
	t.Helper()

	info, err := os.Stat(name)
	assert.NoError(t, err)

	return info
}
