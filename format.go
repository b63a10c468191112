package unarchive

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Format is a supported archive container.
type Format string

const (
	FormatTar   Format = "tar"
	FormatTarGz Format = "tar.gz"
	FormatZip   Format = "zip"
)

const sniffLen = 512

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte("PK\x03\x04")
	// an empty zip only has an end of central directory record
	zipEmptyMagic = []byte("PK\x05\x06")
	tarMagic      = []byte("ustar")
)

const tarMagicOffset = 257

// ParseFormat validates an explicit format name. The empty string means "detect".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return "", nil
	case FormatTar, FormatTarGz, FormatZip:
		return f, nil
	case "tgz":
		return FormatTarGz, nil
	default:
		return "", errors.Errorf("unknown format %q", s)
	}
}

// FormatFromName infers the format from a file name's extension.
func FormatFromName(name string) (Format, bool) {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, true
	case filepath.Ext(lower) == ".tar":
		return FormatTar, true
	case filepath.Ext(lower) == ".zip":
		return FormatZip, true
	}

	return "", false
}

// SniffFormat infers the format from the leading bytes of an archive.
func SniffFormat(header []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz, true
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, zipEmptyMagic):
		return FormatZip, true
	case len(header) >= tarMagicOffset+len(tarMagic) &&
		bytes.Equal(header[tarMagicOffset:tarMagicOffset+len(tarMagic)], tarMagic):
		return FormatTar, true
	}

	return "", false
}

// detectFormat resolves the archive format of path: an explicit format wins, then the
// extension, then the content.
func detectFormat(fsys afero.Fs, path string, explicit Format) (Format, error) {
	if explicit != "" {
		return explicit, nil
	}

	if format, ok := FormatFromName(path); ok {
		return format, nil
	}

	f, err := fsys.Open(path)
	if err != nil {
		return "", newError(KindSourceNotFound, path, err)
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", newError(KindSourceNotFound, path, err)
	}

	if format, ok := SniffFormat(header[:n]); ok {
		return format, nil
	}

	return "", &Error{
		Kind:   KindUnsupportedFormat,
		Path:   path,
		Format: Format(strings.TrimPrefix(filepath.Ext(path), ".")),
		Err:    errors.New("content does not match tar, tar.gz or zip"),
	}
}
