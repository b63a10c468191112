package taskargs

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/ybirader/unarchive"
)

func TestToRequest(t *testing.T) {
	t.Run("maps every parameter", func(t *testing.T) {
		req, err := ToRequest(map[string]string{
			"src":     "a.tgz",
			"dest":    "/srv",
			"creates": "/srv/bin",
			"mode":    "u+rwX,g-rwx,o-rwx",
			"copy":    "no",
			"format":  "tgz",
		})
		assert.NoError(t, err)

		assert.Equal(t, unarchive.Request{
			Src:     "a.tgz",
			Dest:    "/srv",
			Creates: "/srv/bin",
			Mode:    "u+rwX,g-rwx,o-rwx",
			Format:  unarchive.FormatTarGz,
		}, req)
	})

	t.Run("copies by default", func(t *testing.T) {
		req, err := ToRequest(map[string]string{"src": "a.zip", "dest": "/srv"})
		assert.NoError(t, err)

		assert.True(t, req.Copy)
	})

	t.Run("requires src and dest", func(t *testing.T) {
		_, err := ToRequest(map[string]string{"dest": "/srv"})
		assert.EqualError(t, err, "missing required argument: src")

		_, err = ToRequest(map[string]string{"src": "a.zip"})
		assert.EqualError(t, err, "missing required argument: dest")
	})

	t.Run("rejects unknown parameters", func(t *testing.T) {
		_, err := ToRequest(map[string]string{"src": "a", "dest": "b", "owner": "root", "group": "root"})
		assert.IsError(t, err, ErrUnsupportedParameter)
		assert.Contains(t, err.Error(), "group, owner")
	})

	t.Run("rejects invalid copy values", func(t *testing.T) {
		_, err := ToRequest(map[string]string{"src": "a", "dest": "b", "copy": "maybe"})
		assert.Error(t, err)
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		_, err := ToRequest(map[string]string{"src": "a", "dest": "b", "format": "rar"})
		assert.Error(t, err)
	})
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"yes", "YES", "true", "1", "on", "y"} {
		b, err := ParseBool(s)
		assert.NoError(t, err)
		assert.True(t, b, s)
	}

	for _, s := range []string{"no", "False", "0", "off", "n"} {
		b, err := ParseBool(s)
		assert.NoError(t, err)
		assert.False(t, b, s)
	}

	_, err := ParseBool("")
	assert.Error(t, err)
}
