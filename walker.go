package unarchive

import (
	"archive/tar"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive/mode"
)

// EntryType is the kind of filesystem object an archive entry describes.
type EntryType string

const (
	TypeFile    EntryType = "file"
	TypeDir     EntryType = "dir"
	TypeSymlink EntryType = "symlink"
)

const (
	defaultFileMode fs.FileMode = 0o644
	defaultDirMode  fs.FileMode = 0o755
)

// Zip creator systems whose external attributes carry unix permission bits.
const (
	zipCreatorUnix  = 3
	zipCreatorMacOS = 19
)

// Entry is a single record of an archive.
type Entry struct {
	// Name is the cleaned, slash separated path relative to the destination.
	Name     string
	Type     EntryType
	Size     int64
	Mode     fs.FileMode
	ModTime  time.Time
	CRC32    uint32
	Linkname string

	// ordinal is the position of the entry in the archive. When a name repeats,
	// the last record wins.
	ordinal  int
	crcKnown bool
}

// walker streams the entries of an archive in order. open is only valid until the
// next call to next.
type walker interface {
	next() (entry *Entry, open func() (io.ReadCloser, error), err error)
	Close() error
}

func openWalker(fsys afero.Fs, path string, format Format) (walker, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, newError(KindSourceNotFound, path, err)
	}

	var w walker
	switch format {
	case FormatTar:
		w = newTarWalker(f, f)
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, corrupt(path, format, errors.Wrap(err, "could not read gzip header"))
		}
		w = newTarWalker(gz, multiCloser{gz, f})
	case FormatZip:
		w, err = newZipWalker(f)
		if err != nil {
			f.Close()
			return nil, corrupt(path, format, err)
		}
	default:
		f.Close()
		return nil, &Error{Kind: KindUnsupportedFormat, Path: path, Format: format}
	}

	return w, nil
}

func corrupt(path string, format Format, err error) *Error {
	return &Error{Kind: KindCorruptArchive, Path: path, Format: format, Err: err}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var err error
	for _, c := range m {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	return err
}

type tarWalker struct {
	r      *tar.Reader
	closer io.Closer
	count  int
}

func newTarWalker(r io.Reader, closer io.Closer) *tarWalker {
	return &tarWalker{r: tar.NewReader(r), closer: closer}
}

func (w *tarWalker) next() (*Entry, func() (io.ReadCloser, error), error) {
	for {
		header, err := w.r.Next()
		if err != nil {
			return nil, nil, err
		}

		var typ EntryType
		switch header.Typeflag {
		case tar.TypeReg:
			typ = TypeFile
		case tar.TypeDir:
			typ = TypeDir
		case tar.TypeSymlink:
			typ = TypeSymlink
		case tar.TypeXGlobalHeader:
			continue
		default:
			return nil, nil, newError(KindUnsupportedEntry, header.Name,
				errors.Errorf("tar entry type %q is not supported", header.Typeflag))
		}

		entry := &Entry{
			Name:     header.Name,
			Type:     typ,
			Size:     header.Size,
			Mode:     mode.Bits(header.FileInfo().Mode()),
			ModTime:  header.ModTime,
			Linkname: header.Linkname,
			ordinal:  w.count,
		}
		if typ != TypeFile {
			entry.Size = 0
		}
		w.count++

		open := func() (io.ReadCloser, error) {
			return io.NopCloser(w.r), nil
		}

		return entry, open, nil
	}
}

func (w *tarWalker) Close() error {
	return w.closer.Close()
}

type zipWalker struct {
	files  []*zip.File
	pos    int
	closer io.Closer
}

func newZipWalker(f afero.File) (*zipWalker, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "could not stat archive")
	}

	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, errors.Wrap(err, "could not read zip directory")
	}

	return &zipWalker{files: r.File, closer: f}, nil
}

func (w *zipWalker) next() (*Entry, func() (io.ReadCloser, error), error) {
	if w.pos >= len(w.files) {
		return nil, nil, io.EOF
	}
	file := w.files[w.pos]
	ordinal := w.pos
	w.pos++

	fileMode := file.Mode()
	entry := &Entry{
		Name:     file.Name,
		Mode:     mode.Bits(fileMode),
		ModTime:  file.Modified,
		CRC32:    file.CRC32,
		ordinal:  ordinal,
		crcKnown: true,
	}

	unixMode := zipHasUnixMode(file)

	switch {
	case fileMode.IsDir() || strings.HasSuffix(file.Name, "/"):
		entry.Type = TypeDir
		if !unixMode || entry.Mode.Perm() == 0 {
			entry.Mode = defaultDirMode
		}
	case fileMode&fs.ModeSymlink != 0:
		entry.Type = TypeSymlink
		target, err := readLink(file)
		if err != nil {
			return nil, nil, err
		}
		entry.Linkname = target
	case fileMode.IsRegular():
		entry.Type = TypeFile
		entry.Size = int64(file.UncompressedSize64)
		switch {
		case !unixMode:
			entry.Mode = defaultFileMode
			if fileMode&0o200 == 0 {
				entry.Mode &^= 0o222
			}
		case entry.Mode.Perm() == 0:
			entry.Mode |= defaultFileMode
		}
	default:
		return nil, nil, newError(KindUnsupportedEntry, file.Name,
			errors.Errorf("zip entry mode %s is not supported", fileMode.Type()))
	}

	return entry, file.Open, nil
}

// zipHasUnixMode reports whether file was written by an archiver that records unix
// permissions. Other creators only store a read-only flag, which archive/zip widens to
// 0666 or 0777.
func zipHasUnixMode(file *zip.File) bool {
	switch file.CreatorVersion >> 8 {
	case zipCreatorUnix, zipCreatorMacOS:
		return true
	default:
		return false
	}
}

func (w *zipWalker) Close() error {
	return w.closer.Close()
}

// readLink reads a zip symlink, whose target is stored as the entry's content.
func readLink(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", errors.Wrapf(err, "could not open symlink %s", file.Name)
	}
	defer rc.Close()

	target, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", errors.Wrapf(err, "could not read symlink %s", file.Name)
	}

	return string(target), nil
}
