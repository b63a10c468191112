package unarchive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/google/uuid"
	derrors "github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive/mode"
	"go.uber.org/zap"
)

const intermediateDirMode fs.FileMode = 0o755

type Extractor struct {
	fs          afero.Fs
	logger      *zap.Logger
	concurrency int
	guards      []Guard
}

// NewExtractor returns a new extractor working on fsys. The extractor can be configured by passing in a number of options.
// Available options include ExtractorConcurrency(n int), WithLogger and WithGuard. It returns an error if an option is invalid.
func NewExtractor(fsys afero.Fs, options ...extractorOption) (*Extractor, error) {
	e := &Extractor{fs: fsys, logger: zap.NewNop(), concurrency: runtime.GOMAXPROCS(0)}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// prepared is everything known about a request once it has been planned.
type prepared struct {
	src      string
	format   Format
	manifest *Manifest
	actions  []Action
	cleanup  func()
}

// Extract makes req.Dest contain the entries of req.Src and reports whether anything
// changed. Nothing is written unless the plan says so; the guards are evaluated before
// the archive is touched.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	result, log, done, err := e.begin(ctx, req)
	if err != nil || done {
		return result, err
	}

	p, err := e.prepare(ctx, req, log)
	if err != nil {
		return nil, err
	}
	defer p.cleanup()

	result.Diagnostics.Format = p.format

	extracted, chmodded, err := e.apply(ctx, req.Dest, p, log)
	if err != nil {
		return nil, err
	}

	result.Changed = extracted > 0 || chmodded > 0
	result.Diagnostics.Actions = p.actions
	result.Diagnostics.Extracted = extracted
	result.Diagnostics.Chmodded = chmodded
	result.Msg = summarize(req, extracted, chmodded)

	log.Info("extraction finished",
		zap.Bool("changed", result.Changed),
		zap.Int("extracted", extracted),
		zap.Int("chmodded", chmodded),
	)

	return result, nil
}

// Plan evaluates the guards and computes the actions Extract would perform without
// modifying the destination. Changed reports the verdict Extract would return.
func (e *Extractor) Plan(ctx context.Context, req Request) (*Result, error) {
	result, log, done, err := e.begin(ctx, req)
	if err != nil || done {
		return result, err
	}

	p, err := e.prepare(ctx, req, log)
	if err != nil {
		return nil, err
	}
	defer p.cleanup()

	result.Changed = Changed(p.actions)
	result.Diagnostics.Format = p.format
	result.Diagnostics.Actions = p.actions
	for _, a := range p.actions {
		switch {
		case a.Writes():
			result.Diagnostics.Extracted++
		case a.Kind == ActionChmod:
			result.Diagnostics.Chmodded++
		}
	}
	result.Msg = fmt.Sprintf("would extract %d entries and change permissions on %d",
		result.Diagnostics.Extracted, result.Diagnostics.Chmodded)

	return result, nil
}

// begin evaluates the guards. done is true when the request was skipped.
func (e *Extractor) begin(ctx context.Context, req Request) (*Result, *zap.Logger, bool, error) {
	result := &Result{Diagnostics: Diagnostics{RunID: uuid.NewString()}}
	log := e.logger.With(
		zap.String("run_id", result.Diagnostics.RunID),
		zap.String("src", req.Src),
		zap.String("dest", req.Dest),
	)

	guards := e.guards
	if req.Creates != "" {
		guards = append([]Guard{CreatesGuard(req.Creates)}, guards...)
	}

	for _, guard := range guards {
		skip, reason, err := guard(ctx, e.fs)
		if err != nil {
			return nil, log, true, derrors.Wrap(err, "could not evaluate guard")
		}
		if skip {
			log.Info("extraction skipped", zap.String("reason", reason))
			result.Skipped = true
			result.Msg = reason
			return result, log, true, nil
		}
	}

	return result, log, false, nil
}

func (e *Extractor) prepare(ctx context.Context, req Request, log *zap.Logger) (_ *prepared, err error) {
	if err = e.checkSource(req.Src); err != nil {
		return nil, err
	}
	if err = e.checkDestination(req.Dest); err != nil {
		return nil, err
	}

	var spec mode.Spec
	if req.Mode != "" {
		if spec, err = mode.Parse(req.Mode); err != nil {
			return nil, newError(KindInvalidModeSpec, req.Mode, err)
		}
	}

	p := &prepared{src: req.Src, cleanup: func() {}}
	defer func() {
		if err != nil {
			p.cleanup()
		}
	}()

	if req.Copy {
		staged, cleanup, err := e.stage(req.Src)
		if err != nil {
			return nil, err
		}
		p.src, p.cleanup = staged, cleanup
	}

	format := req.Format
	if format == "" {
		if f, ok := FormatFromName(req.Src); ok {
			format = f
		}
	}
	if p.format, err = detectFormat(e.fs, p.src, format); err != nil {
		return nil, err
	}
	log.Debug("detected archive format", zap.String("format", string(p.format)))

	if p.manifest, err = ReadManifest(ctx, e.fs, p.src, p.format); err != nil {
		return nil, err
	}

	snap, err := Inspect(ctx, e.fs, req.Dest, p.manifest, e.concurrency)
	if err != nil {
		return nil, err
	}

	if p.actions, err = Plan(p.manifest, snap, spec); err != nil {
		return nil, err
	}

	log.Debug("planned extraction",
		zap.Int("entries", len(p.manifest.Entries)),
		zap.Bool("changes", Changed(p.actions)),
	)

	return p, nil
}

func (e *Extractor) checkSource(src string) error {
	if src == "" {
		return newError(KindSourceNotFound, src, derrors.New("src is required"))
	}

	info, err := e.fs.Stat(src)
	if err != nil {
		return newError(KindSourceNotFound, src, err)
	}
	if !info.Mode().IsRegular() {
		return newError(KindSourceNotFound, src, derrors.New("not a regular file"))
	}

	f, err := e.fs.Open(src)
	if err != nil {
		return newError(KindSourceNotFound, src, err)
	}

	return f.Close()
}

func (e *Extractor) checkDestination(dest string) error {
	if dest == "" {
		return newError(KindDestinationNotWritable, dest, derrors.New("dest is required"))
	}

	info, err := e.fs.Stat(dest)
	if err != nil {
		return newError(KindDestinationNotWritable, dest, derrors.Wrap(err, "destination must be an existing directory"))
	}
	if !info.IsDir() {
		return newError(KindDestinationNotWritable, dest, derrors.New("destination is not a directory"))
	}

	return nil
}

// stage copies src to a temporary file and returns its path and a function removing it.
func (e *Extractor) stage(src string) (string, func(), error) {
	in, err := e.fs.Open(src)
	if err != nil {
		return "", nil, newError(KindSourceNotFound, src, err)
	}
	defer in.Close()

	out, err := afero.TempFile(e.fs, "", "unarchive-*-"+filepath.Base(src))
	if err != nil {
		return "", nil, newError(KindDestinationNotWritable, src, derrors.Wrap(err, "could not create staging file"))
	}
	cleanup := func() {
		e.fs.Remove(out.Name())
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		cleanup()
		return "", nil, newError(KindSourceNotFound, src, derrors.Wrap(err, "could not stage source"))
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", nil, newError(KindDestinationNotWritable, out.Name(), err)
	}

	return out.Name(), cleanup, nil
}

// apply performs the planned actions: it streams the archive once more writing the
// entries marked create or overwrite, then reconciles permissions, children before
// their parents.
func (e *Extractor) apply(ctx context.Context, dest string, p *prepared, log *zap.Logger) (extracted, chmodded int, err error) {
	pending := make(map[int]*Action)
	for i := range p.actions {
		if p.actions[i].Writes() {
			pending[p.actions[i].entry.ordinal] = &p.actions[i]
		}
	}

	if len(pending) > 0 {
		if extracted, err = e.writeEntries(ctx, dest, p, pending, log); err != nil {
			return extracted, 0, err
		}
	}

	order := make([]*Action, 0, len(p.actions))
	for i := range p.actions {
		order = append(order, &p.actions[i])
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Path > order[j].Path })

	for _, a := range order {
		if err := ctx.Err(); err != nil {
			return extracted, chmodded, err
		}
		if a.entry.Type == TypeSymlink || !(a.Writes() || a.Kind == ActionChmod) {
			continue
		}

		target := destPath(dest, a.Path)
		if a.Writes() {
			info, err := e.fs.Stat(target)
			if err != nil {
				return extracted, chmodded, newError(KindPermissionApplyFailed, target, err)
			}
			if mode.Bits(info.Mode()) == a.To {
				continue
			}
		}

		if err := e.fs.Chmod(target, a.To); err != nil {
			return extracted, chmodded, newError(KindPermissionApplyFailed, target, err)
		}
		if a.Kind == ActionChmod {
			chmodded++
			log.Debug("changed permissions",
				zap.String("path", a.Path),
				zap.Stringer("from", a.From),
				zap.Stringer("to", a.To),
			)
		}
	}

	return extracted, chmodded, nil
}

func (e *Extractor) writeEntries(ctx context.Context, dest string, p *prepared, pending map[int]*Action, log *zap.Logger) (int, error) {
	w, err := openWalker(e.fs, p.src, p.format)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	written := 0
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		entry, open, err := w.next()
		if derrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, asCorrupt(err, p.src, p.format)
		}

		action, ok := pending[entry.ordinal]
		if !ok {
			continue
		}
		delete(pending, entry.ordinal)

		if err := e.writeEntry(dest, action, open); err != nil {
			return written, err
		}
		written++

		log.Debug("extracted entry",
			zap.String("path", action.Path),
			zap.String("action", string(action.Kind)),
			zap.String("reason", action.Reason),
		)
	}

	if len(pending) > 0 {
		return written, corrupt(p.src, p.format, derrors.New("archive changed while extracting"))
	}

	return written, nil
}

func (e *Extractor) writeEntry(dest string, action *Action, open func() (io.ReadCloser, error)) error {
	entry := action.entry
	target := destPath(dest, action.Path)

	if entry.Type == TypeDir {
		if err := e.fs.MkdirAll(target, intermediateDirMode); err != nil {
			return newError(KindDestinationNotWritable, target, err)
		}
		return nil
	}

	if err := e.fs.MkdirAll(filepath.Dir(target), intermediateDirMode); err != nil {
		return newError(KindDestinationNotWritable, filepath.Dir(target), err)
	}

	if action.Kind == ActionOverwrite {
		if err := e.fs.Remove(target); err != nil && !os.IsNotExist(err) {
			return newError(KindDestinationNotWritable, target, derrors.Wrap(err, "could not replace existing entry"))
		}
	}

	if entry.Type == TypeSymlink {
		linker, ok := e.fs.(afero.Linker)
		if !ok {
			return newError(KindUnsupportedEntry, target, derrors.New("filesystem does not support symlinks"))
		}
		if err := linker.SymlinkIfPossible(entry.Linkname, target); err != nil {
			return newError(KindDestinationNotWritable, target, err)
		}
		return nil
	}

	return e.writeFile(target, action, open)
}

func (e *Extractor) writeFile(target string, action *Action, open func() (io.ReadCloser, error)) error {
	entry := action.entry

	src, err := open()
	if err != nil {
		return newError(KindCorruptArchive, entry.Name, err)
	}
	defer src.Close()

	out, err := e.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, action.To.Perm())
	if err != nil {
		return newError(KindDestinationNotWritable, target, err)
	}
	closed := false
	defer func() {
		if !closed {
			out.Close()
		}
	}()

	if _, err := io.Copy(writerOnly{out}, src); err != nil {
		var werr writeError
		if derrors.As(err, &werr) {
			return newError(KindDestinationNotWritable, target, werr.err)
		}
		return newError(KindCorruptArchive, entry.Name, derrors.Wrap(err, "could not decompress entry"))
	}

	closed = true
	if err := out.Close(); err != nil {
		return newError(KindDestinationNotWritable, target, err)
	}

	// Close may touch the modification time, so it is stamped afterwards.
	if !entry.ModTime.IsZero() {
		if err := e.fs.Chtimes(target, entry.ModTime, entry.ModTime); err != nil {
			return newError(KindDestinationNotWritable, target, err)
		}
	}

	return nil
}

// writerOnly tags write failures so they can be told apart from read failures of the
// archive stream in io.Copy.
type writerOnly struct {
	w io.Writer
}

type writeError struct {
	err error
}

func (e writeError) Error() string { return e.err.Error() }

func (w writerOnly) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, writeError{err}
	}

	return n, nil
}

func summarize(req Request, extracted, chmodded int) string {
	switch {
	case extracted == 0 && chmodded == 0:
		return fmt.Sprintf("%s is already extracted to %s", req.Src, req.Dest)
	case chmodded == 0:
		return fmt.Sprintf("extracted %d entries to %s", extracted, req.Dest)
	default:
		return fmt.Sprintf("extracted %d entries to %s, changed permissions on %d", extracted, req.Dest, chmodded)
	}
}
