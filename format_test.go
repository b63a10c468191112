package unarchive

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive/internal/testutils"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":        "",
		"tar":     FormatTar,
		"TAR.GZ":  FormatTarGz,
		" tgz ":   FormatTarGz,
		"zip":     FormatZip,
		"tar.gz ": FormatTarGz,
	}

	for in, want := range tests {
		got, err := ParseFormat(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("rar")
	assert.Error(t, err)
}

func TestFormatFromName(t *testing.T) {
	tests := map[string]Format{
		"release.tar.gz":     FormatTarGz,
		"release.TGZ":        FormatTarGz,
		"/srv/data.tar":      FormatTar,
		"site.zip":           FormatZip,
		"dir.zip/inside.tar": FormatTar,
	}

	for name, want := range tests {
		got, ok := FormatFromName(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{"release", "notes.txt", "archive.rar", "backup.gz"} {
		_, ok := FormatFromName(name)
		assert.False(t, ok, name)
	}
}

func TestSniffFormat(t *testing.T) {
	entry := testutils.Entry{Name: "foo.txt", Body: "foo"}

	t.Run("recognises tar", func(t *testing.T) {
		format, ok := SniffFormat(testutils.TarBytes(t, entry)[:sniffLen])
		assert.True(t, ok)
		assert.Equal(t, FormatTar, format)
	})

	t.Run("recognises gzip as tar.gz", func(t *testing.T) {
		format, ok := SniffFormat(testutils.Gzip(t, testutils.TarBytes(t, entry)))
		assert.True(t, ok)
		assert.Equal(t, FormatTarGz, format)
	})

	t.Run("recognises zip", func(t *testing.T) {
		format, ok := SniffFormat(testutils.ZipBytes(t, entry))
		assert.True(t, ok)
		assert.Equal(t, FormatZip, format)
	})

	t.Run("recognises empty zip", func(t *testing.T) {
		format, ok := SniffFormat(testutils.ZipBytes(t))
		assert.True(t, ok)
		assert.Equal(t, FormatZip, format)
	})

	t.Run("rejects anything else", func(t *testing.T) {
		_, ok := SniffFormat([]byte("just some text"))
		assert.False(t, ok)

		_, ok = SniffFormat(nil)
		assert.False(t, ok)
	})
}

func TestDetectFormat(t *testing.T) {
	fsys := afero.NewMemMapFs()

	t.Run("prefers an explicit format", func(t *testing.T) {
		format, err := detectFormat(fsys, "/missing.zip", FormatTar)
		assert.NoError(t, err)
		assert.Equal(t, FormatTar, format)
	})

	t.Run("uses the extension before the content", func(t *testing.T) {
		testutils.WriteArchive(t, fsys, "/in/data.tar", "zip", testutils.Entry{Name: "a"})

		format, err := detectFormat(fsys, "/in/data.tar", "")
		assert.NoError(t, err)
		assert.Equal(t, FormatTar, format)
	})

	t.Run("sniffs files without a known extension", func(t *testing.T) {
		testutils.WriteArchive(t, fsys, "/in/blob", "tar.gz", testutils.Entry{Name: "a"})

		format, err := detectFormat(fsys, "/in/blob", "")
		assert.NoError(t, err)
		assert.Equal(t, FormatTarGz, format)
	})

	t.Run("reports unknown content as an unsupported format", func(t *testing.T) {
		assert.NoError(t, afero.WriteFile(fsys, "/in/notes.rar", []byte("Rar!"), 0o644))

		_, err := detectFormat(fsys, "/in/notes.rar", "")
		assert.IsError(t, err, ErrUnsupportedFormat)

		var e *Error
		assert.True(t, errors.As(err, &e))
		assert.Equal(t, Format("rar"), e.Format)
	})
}
