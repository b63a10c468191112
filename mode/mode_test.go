package mode_test

import (
	"errors"
	"io/fs"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/ybirader/unarchive/mode"
)

func TestParse(t *testing.T) {
	t.Run("reads octal strings as absolute modes", func(t *testing.T) {
		spec, err := mode.Parse("0600")
		assert.NoError(t, err)

		assert.Equal(t, mode.Spec(mode.Absolute(0o600)), spec)
		assert.Equal(t, "0600", spec.String())
	})

	t.Run("reads octal strings with special bits", func(t *testing.T) {
		spec, err := mode.Parse("4755")
		assert.NoError(t, err)

		assert.Equal(t, fs.ModeSetuid|0o755, spec.Apply(0, false))
	})

	t.Run("reads octal strings the way FromOctal converts them", func(t *testing.T) {
		for _, input := range []uint32{0o2750, 0o1777, 0o644} {
			spec, err := mode.Parse(strconv.FormatUint(uint64(input), 8))
			assert.NoError(t, err)

			assert.Equal(t, mode.Spec(mode.Absolute(mode.FromOctal(input))), spec)
		}
	})

	t.Run("reads comma separated symbolic clauses", func(t *testing.T) {
		spec, err := mode.Parse("u+rwX,g-rwx,o-rwx")
		assert.NoError(t, err)

		symbolic, ok := spec.(mode.Symbolic)
		assert.True(t, ok)
		assert.Equal(t, 3, len(symbolic))
		assert.Equal(t, "u+rwX,g-rwx,o-rwx", spec.String())
	})

	t.Run("defaults a missing class to all classes", func(t *testing.T) {
		spec, err := mode.Parse("+x")
		assert.NoError(t, err)

		assert.Equal(t, "a+x", spec.String())
	})

	t.Run("rejects invalid modes", func(t *testing.T) {
		for _, input := range []string{"", "  ", "u", "u+q", "z+r", "77777", "u+r,", "rwx"} {
			_, err := mode.Parse(input)
			assert.Error(t, err, input)
			assert.True(t, errors.Is(err, mode.ErrInvalid), input)
		}
	})
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		current fs.FileMode
		isDir   bool
		want    fs.FileMode
	}{
		{"restricts a world readable file to its owner", "u+rwX,g-rwx,o-rwx", 0o644, false, 0o600},
		{"keeps owner execute on an executable file", "u+rwX,g-rwx,o-rwx", 0o755, false, 0o700},
		{"grants conditional execute to directories", "u+rwX,g-rwx,o-rwx", 0o644, true, 0o700},
		{"is stable when reapplied", "u+rwX,g-rwx,o-rwx", 0o600, false, 0o600},
		{"assigns exact bits with equals", "u=rw,go=r", 0o777, false, 0o644},
		{"clears a class with an empty equals", "o=", 0o777, false, 0o770},
		{"copies permissions from another class", "g=u", 0o740, false, 0o770},
		{"chains operators in one clause", "u+x-w", 0o644, false, 0o544},
		{"sets setgid for the group class only", "g+s", 0o755, true, fs.ModeSetgid | 0o755},
		{"sets sticky for the other class", "+t", 0o777, true, fs.ModeSticky | 0o777},
		{"ignores sticky for the user class", "u+t", 0o777, true, 0o777},
		{"replaces everything with an absolute mode", "0640", 0o777 | fs.ModeSetuid, false, 0o640},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := mode.Parse(tt.spec)
			assert.NoError(t, err)

			assert.Equal(t, tt.want, spec.Apply(tt.current, tt.isDir))
		})
	}
}

func TestBits(t *testing.T) {
	t.Run("drops type bits", func(t *testing.T) {
		assert.Equal(t, fs.FileMode(0o755), mode.Bits(fs.ModeDir|0o755))
	})

	t.Run("keeps special bits", func(t *testing.T) {
		assert.Equal(t, fs.ModeSetuid|0o755, mode.Bits(mode.FromOctal(0o4755)))
	})
}
