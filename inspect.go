package unarchive

import (
	"context"
	"hash/crc32"
	"io"
	"io/fs"
	"path"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive/mode"
	"github.com/ybirader/unarchive/pool"
)

// TypeOther marks an existing path that is neither a file, a directory nor a symlink.
const TypeOther EntryType = "other"

// PathState is what currently exists at an entry's destination path.
type PathState struct {
	Exists   bool
	Type     EntryType
	Size     int64
	Mode     fs.FileMode
	CRC32    uint32
	Linkname string

	crcKnown bool
}

// Snapshot maps cleaned entry names, and every ancestor of them, to their state under
// the destination directory.
type Snapshot map[string]PathState

type checksumJob struct {
	name string
	path string
	sum  *uint32
}

// Inspect records the destination state relevant to m. Regular files whose size matches
// their entry are checksummed on up to concurrency goroutines; nothing is modified.
func Inspect(ctx context.Context, fsys afero.Fs, dest string, m *Manifest, concurrency int) (Snapshot, error) {
	names := make(map[string]struct{})
	for _, entry := range m.Entries {
		for name := entry.Name; name != "." && name != "/"; name = path.Dir(name) {
			names[name] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	// parents sort before their children
	sort.Strings(ordered)

	snap := make(Snapshot, len(ordered))
	var jobs []checksumJob

	for _, name := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if parent := path.Dir(name); parent != "." {
			if ps := snap[parent]; !ps.Exists || ps.Type != TypeDir {
				snap[name] = PathState{}
				continue
			}
		}

		state, err := lstatState(fsys, destPath(dest, name))
		if err != nil {
			return nil, newError(KindDestinationNotWritable, destPath(dest, name), err)
		}

		if entry, ok := m.Lookup(name); ok && entry.Type == TypeFile &&
			state.Type == TypeFile && state.Size == entry.Size {
			jobs = append(jobs, checksumJob{name: name, path: destPath(dest, name), sum: new(uint32)})
		}
		snap[name] = state
	}

	if err := checksumAll(ctx, fsys, jobs, concurrency); err != nil {
		return nil, err
	}
	for _, job := range jobs {
		state := snap[job.name]
		state.CRC32, state.crcKnown = *job.sum, true
		snap[job.name] = state
	}

	return snap, nil
}

func lstatState(fsys afero.Fs, p string) (PathState, error) {
	var info fs.FileInfo
	var err error
	if lstater, ok := fsys.(afero.Lstater); ok {
		info, _, err = lstater.LstatIfPossible(p)
	} else {
		info, err = fsys.Stat(p)
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return PathState{}, nil
	}
	if err != nil {
		return PathState{}, err
	}

	state := PathState{Exists: true, Mode: mode.Bits(info.Mode())}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		state.Type = TypeSymlink
		if reader, ok := fsys.(afero.LinkReader); ok {
			if state.Linkname, err = reader.ReadlinkIfPossible(p); err != nil {
				return PathState{}, err
			}
		}
	case info.IsDir():
		state.Type = TypeDir
	case info.Mode().IsRegular():
		state.Type = TypeFile
		state.Size = info.Size()
	default:
		state.Type = TypeOther
	}

	return state, nil
}

func checksumAll(ctx context.Context, fsys afero.Fs, jobs []checksumJob, concurrency int) error {
	if len(jobs) == 0 {
		return nil
	}

	executor := func(job checksumJob) error {
		f, err := fsys.Open(job.path)
		if err != nil {
			return newError(KindDestinationNotWritable, job.path, err)
		}
		defer f.Close()

		h := crc32.NewIEEE()
		if _, err := io.Copy(h, f); err != nil {
			return newError(KindDestinationNotWritable, job.path, errors.Wrap(err, "could not read existing file"))
		}
		*job.sum = h.Sum32()

		return nil
	}

	p, err := newChecksumPool(executor, concurrency)
	if err != nil {
		return errors.Wrap(err, "could not create checksum pool")
	}

	p.Start(ctx)
	for _, job := range jobs {
		p.Enqueue(job)
	}

	return p.Close()
}

func newChecksumPool(executor func(checksumJob) error, concurrency int) (pool.WorkerPool[checksumJob], error) {
	p, err := pool.New(executor, &pool.Config{Concurrency: concurrency, Capacity: concurrency})
	if err != nil {
		return nil, err
	}

	return p, nil
}
