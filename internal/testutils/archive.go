package testutils

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"path"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
)

const msdosReadOnly = 0x01

// ModTime is the modification time stamped on every fixture entry.
var ModTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Entry describes one archive member. Names ending in "/" are directories and a
// non-empty Link makes a symlink. Mode defaults to 0644 for files and 0755 for
// directories. TarType, when set, overrides the tar header type flag. NoUnixMode
// writes the zip header the way FAT and NTFS archivers do, keeping only whether
// Mode is writable.
type Entry struct {
	Name       string
	Body       string
	Mode       fs.FileMode
	Link       string
	TarType    byte
	NoUnixMode bool
}

func (e Entry) isDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

func (e Entry) mode() fs.FileMode {
	switch {
	case e.Mode != 0:
		return e.Mode
	case e.isDir():
		return 0o755
	case e.Link != "":
		return 0o777
	default:
		return 0o644
	}
}

// WriteArchive writes entries to name on fsys in the given format: "tar", "tar.gz" or "zip".
func WriteArchive(t testing.TB, fsys afero.Fs, name, format string, entries ...Entry) {
	t.Helper()

	var data []byte
	switch format {
	case "tar":
		data = TarBytes(t, entries...)
	case "tar.gz":
		data = Gzip(t, TarBytes(t, entries...))
	case "zip":
		data = ZipBytes(t, entries...)
	default:
		t.Fatalf("unknown fixture format %q", format)
	}

	assert.NoError(t, fsys.MkdirAll(path.Dir(name), 0o755))
	assert.NoError(t, afero.WriteFile(fsys, name, data, 0o644), fmt.Sprintf("could not write archive %s", name))
}

func TarBytes(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, e := range entries {
		hdr := &tar.Header{
			Name:    e.Name,
			Mode:    int64(e.mode().Perm() | unixSpecial(e.mode())),
			ModTime: ModTime,
		}

		switch {
		case e.TarType != 0:
			hdr.Typeflag = e.TarType
			hdr.Linkname = e.Link
		case e.isDir():
			hdr.Typeflag = tar.TypeDir
		case e.Link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}

		assert.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := io.WriteString(tw, e.Body)
			assert.NoError(t, err)
		}
	}

	assert.NoError(t, tw.Close())
	return buf.Bytes()
}

func ZipBytes(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: ModTime}

		switch {
		case e.NoUnixMode:
			if e.isDir() {
				hdr.Method = zip.Store
			}
			if e.mode()&0o200 == 0 {
				hdr.ExternalAttrs = msdosReadOnly
			}
		case e.isDir():
			hdr.Method = zip.Store
			hdr.SetMode(fs.ModeDir | e.mode())
		case e.Link != "":
			hdr.Method = zip.Store
			hdr.SetMode(fs.ModeSymlink | e.mode())
		default:
			hdr.SetMode(e.mode())
		}

		w, err := zw.CreateHeader(hdr)
		assert.NoError(t, err)

		body := e.Body
		if e.Link != "" {
			body = e.Link
		}
		if !e.isDir() {
			_, err = io.WriteString(w, body)
			assert.NoError(t, err)
		}
	}

	assert.NoError(t, zw.Close())
	return buf.Bytes()
}

func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	assert.NoError(t, err)
	assert.NoError(t, gw.Close())

	return buf.Bytes()
}

func unixSpecial(m fs.FileMode) fs.FileMode {
	var bits fs.FileMode
	if m&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		bits |= 0o1000
	}
	return bits
}

// Stat returns the Lstat info for name, failing the test if it does not exist.
func Stat(t testing.TB, fsys afero.Fs, name string) fs.FileInfo {
	t.Helper()

	if lstater, ok := fsys.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(name)
		assert.NoError(t, err, fmt.Sprintf("could not get file info for %s", name))
		return info
	}

	info, err := fsys.Stat(name)
	assert.NoError(t, err, fmt.Sprintf("could not get file info for %s", name))

	return info
}

func ReadFile(t testing.TB, fsys afero.Fs, name string) string {
	t.Helper()

	data, err := afero.ReadFile(fsys, name)
	assert.NoError(t, err, fmt.Sprintf("could not read %s", name))

	return string(data)
}

// GetOutput runs cmd and returns its combined output, ignoring its exit status.
func GetOutput(t testing.TB, cmd *exec.Cmd) string {
	t.Helper()

	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		t.Fatalf("could not run %s: %v", cmd.Path, err)
	}

	return string(out)
}

func Find[T any](elements []T, cb func(element T) bool) (T, bool) {
	for _, e := range elements {
		if cb(e) {
			return e, true
		}
	}

	return *new(T), false
}
