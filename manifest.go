package unarchive

import (
	"context"
	"hash/crc32"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Manifest lists the entries of an archive, one per destination path.
type Manifest struct {
	Format  Format
	Entries []*Entry
}

// Lookup returns the entry for a cleaned name.
func (m *Manifest) Lookup(name string) (*Entry, bool) {
	i := sort.Search(len(m.Entries), func(i int) bool { return m.Entries[i].Name >= name })
	if i < len(m.Entries) && m.Entries[i].Name == name {
		return m.Entries[i], true
	}

	return nil, false
}

// ReadManifest streams the archive at path once and returns its entries sorted by name.
// Content checksums come from the zip directory or are computed while reading tar streams.
func ReadManifest(ctx context.Context, fsys afero.Fs, path string, format Format) (*Manifest, error) {
	w, err := openWalker(fsys, path, format)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	byName := make(map[string]*Entry)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, open, err := w.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, asCorrupt(err, path, format)
		}

		name, ok, err := cleanEntryName(entry.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		entry.Name = name

		if entry.Type == TypeSymlink {
			if err := validateLink(entry.Name, entry.Linkname); err != nil {
				return nil, err
			}
		}

		if entry.Type == TypeFile && !entry.crcKnown {
			sum, n, err := checksum(open)
			if err != nil {
				return nil, corrupt(path, format, errors.Wrapf(err, "could not read %s", entry.Name))
			}
			entry.CRC32, entry.Size, entry.crcKnown = sum, n, true
		}

		byName[name] = entry
	}

	m := &Manifest{Format: format, Entries: make([]*Entry, 0, len(byName))}
	for _, entry := range byName {
		m.Entries = append(m.Entries, entry)
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Name < m.Entries[j].Name })

	return m, nil
}

// asCorrupt keeps structured errors from the walker and reports anything else as a
// corrupt archive.
func asCorrupt(err error, path string, format Format) error {
	if KindOf(err) != "" {
		return err
	}

	return corrupt(path, format, err)
}

func checksum(open func() (io.ReadCloser, error)) (uint32, int64, error) {
	rc, err := open()
	if err != nil {
		return 0, 0, err
	}
	defer rc.Close()

	h := crc32.NewIEEE()
	n, err := io.Copy(h, rc)
	if err != nil {
		return 0, 0, err
	}

	return h.Sum32(), n, nil
}
