package unarchive

import (
	"encoding/json"
	"fmt"
	"io/fs"
)

// Request describes a single extraction. Dest must already exist as a directory.
type Request struct {
	Src     string `json:"src" yaml:"src"`
	Dest    string `json:"dest" yaml:"dest"`
	Format  Format `json:"format,omitempty" yaml:"format,omitempty"`
	Creates string `json:"creates,omitempty" yaml:"creates,omitempty"`
	Mode    string `json:"mode,omitempty" yaml:"mode,omitempty"`
	// Copy stages Src to a temporary file before reading it. When false Src is read in place.
	Copy bool `json:"copy" yaml:"copy"`
}

// Result reports what an extraction did. Skipped implies !Changed.
type Result struct {
	Changed     bool        `json:"changed"`
	Skipped     bool        `json:"skipped"`
	Msg         string      `json:"msg,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

type Diagnostics struct {
	RunID     string   `json:"run_id"`
	Format    Format   `json:"format,omitempty"`
	Actions   []Action `json:"actions,omitempty"`
	Extracted int      `json:"extracted"`
	Chmodded  int      `json:"chmodded"`
}

// ActionKind is what the planner decided to do with one entry.
type ActionKind string

const (
	ActionCreate    ActionKind = "create"
	ActionOverwrite ActionKind = "overwrite"
	ActionChmod     ActionKind = "chmod"
	ActionNoop      ActionKind = "noop"
)

// Action is the planned (and, after apply, performed) operation for a single entry.
type Action struct {
	Path   string     `json:"path"`
	Kind   ActionKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
	// From is the permission set found on disk, zero when the path is missing.
	From fs.FileMode `json:"-"`
	// To is the permission set the entry ends up with.
	To fs.FileMode `json:"-"`

	entry *Entry
}

// Writes reports whether the action writes entry content.
func (a Action) Writes() bool {
	return a.Kind == ActionCreate || a.Kind == ActionOverwrite
}

// Mutates reports whether applying the action changes the filesystem.
func (a Action) Mutates() bool {
	return a.Kind != ActionNoop
}

// MarshalJSON renders permission sets as octal strings.
func (a Action) MarshalJSON() ([]byte, error) {
	type action struct {
		Path   string     `json:"path"`
		Kind   ActionKind `json:"kind"`
		Reason string     `json:"reason,omitempty"`
		From   string     `json:"from,omitempty"`
		To     string     `json:"to"`
	}

	out := action{Path: a.Path, Kind: a.Kind, Reason: a.Reason, To: octal(a.To)}
	if a.From != 0 {
		out.From = octal(a.From)
	}

	return json.Marshal(out)
}

func octal(m fs.FileMode) string {
	bits := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		bits |= 0o1000
	}

	return fmt.Sprintf("%04o", bits)
}
