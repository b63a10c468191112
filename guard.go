package unarchive

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Guard is a precondition evaluated before the archive is opened. When skip is true the
// extraction does nothing and reason becomes the result message.
type Guard func(ctx context.Context, fsys afero.Fs) (skip bool, reason string, err error)

// CreatesGuard skips the extraction when path exists.
func CreatesGuard(path string) Guard {
	return func(_ context.Context, fsys afero.Fs) (bool, string, error) {
		_, err := fsys.Stat(path)
		switch {
		case err == nil:
			return true, fmt.Sprintf("skipped, since %s exists", path), nil
		case errors.Is(err, fs.ErrNotExist):
			return false, "", nil
		default:
			return false, "", errors.Wrapf(err, "could not check whether %s exists", path)
		}
	}
}
