package unarchive

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestActionJSON(t *testing.T) {
	t.Run("renders permissions as octal", func(t *testing.T) {
		data, err := json.Marshal(Action{Path: "a.txt", Kind: ActionChmod, Reason: "permissions differ", From: 0o644, To: 0o600})
		assert.NoError(t, err)

		assert.Equal(t, `{"path":"a.txt","kind":"chmod","reason":"permissions differ","from":"0644","to":"0600"}`, string(data))
	})

	t.Run("omits the previous mode of created entries", func(t *testing.T) {
		data, err := json.Marshal(Action{Path: "bin", Kind: ActionCreate, Reason: "missing", To: fs.ModeSetgid | 0o755})
		assert.NoError(t, err)

		assert.Equal(t, `{"path":"bin","kind":"create","reason":"missing","to":"2755"}`, string(data))
	})
}

func TestActionKinds(t *testing.T) {
	assert.True(t, Action{Kind: ActionCreate}.Writes())
	assert.True(t, Action{Kind: ActionOverwrite}.Writes())
	assert.False(t, Action{Kind: ActionChmod}.Writes())
	assert.True(t, Action{Kind: ActionChmod}.Mutates())
	assert.False(t, Action{Kind: ActionNoop}.Mutates())
}
