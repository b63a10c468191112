package unarchive

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	perrors "github.com/pkg/errors"
)

func TestError(t *testing.T) {
	t.Run("matches the sentinel of its kind", func(t *testing.T) {
		err := perrors.Wrap(newError(KindPathConflict, "a", errors.New("boom")), "planning")

		assert.IsError(t, err, ErrPathConflict)
		assert.NotIsError(t, err, ErrUnsafePath)
		assert.Equal(t, KindPathConflict, KindOf(err))
	})

	t.Run("treats an invalid mode as a permission failure", func(t *testing.T) {
		err := newError(KindInvalidModeSpec, "u+q", errors.New("bad"))

		assert.IsError(t, err, ErrInvalidModeSpec)
		assert.IsError(t, err, ErrPermissionApplyFailed)
	})

	t.Run("unwraps to the underlying error", func(t *testing.T) {
		cause := errors.New("disk full")
		err := newError(KindDestinationNotWritable, "/dest/a", cause)

		assert.IsError(t, err, cause)
	})

	t.Run("names the kind, path, format and cause", func(t *testing.T) {
		err := &Error{Kind: KindCorruptArchive, Path: "/src/a.zip", Format: FormatZip, Err: errors.New("bad header")}

		assert.EqualError(t, err, "CorruptArchive /src/a.zip (format zip): bad header")
	})

	t.Run("has no kind outside the extractor", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("other")))
	})
}
