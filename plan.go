package unarchive

import (
	"io/fs"
	"path"

	"github.com/pkg/errors"
	"github.com/ybirader/unarchive/mode"
)

// Plan decides, without touching the filesystem, what has to happen to every entry of m
// for the destination described by snap to match the archive. spec may be nil, in which
// case permissions of existing entries are left alone and new entries get the archive's.
//
// A path that must be a directory but exists as something else, or the reverse, is a
// PathConflict: nothing is replaced across that boundary.
func Plan(m *Manifest, snap Snapshot, spec mode.Spec) ([]Action, error) {
	actions := make([]Action, 0, len(m.Entries))

	for _, entry := range m.Entries {
		if err := checkAncestors(m, snap, entry.Name); err != nil {
			return nil, err
		}

		state := snap[entry.Name]
		isDir := entry.Type == TypeDir
		action := Action{Path: entry.Name, entry: entry, From: state.Mode}

		if !state.Exists {
			action.Kind = ActionCreate
			action.Reason = "missing"
			action.To = resolveMode(spec, entry)
			actions = append(actions, action)
			continue
		}

		if err := checkTypes(entry, state); err != nil {
			return nil, err
		}

		if same, reason := sameContent(entry, state); !same {
			action.Kind = ActionOverwrite
			action.Reason = reason
			action.To = resolveMode(spec, entry)
			actions = append(actions, action)
			continue
		}

		action.Kind = ActionNoop
		action.To = state.Mode
		if spec != nil && entry.Type != TypeSymlink {
			if want := spec.Apply(state.Mode, isDir); want != state.Mode {
				action.Kind = ActionChmod
				action.Reason = "permissions differ"
				action.To = want
			}
		}
		actions = append(actions, action)
	}

	return actions, nil
}

// Changed reports whether applying actions modifies the filesystem.
func Changed(actions []Action) bool {
	for _, a := range actions {
		if a.Mutates() {
			return true
		}
	}

	return false
}

func resolveMode(spec mode.Spec, entry *Entry) fs.FileMode {
	if spec == nil || entry.Type == TypeSymlink {
		return entry.Mode
	}

	return spec.Apply(entry.Mode, entry.Type == TypeDir)
}

func checkAncestors(m *Manifest, snap Snapshot, name string) error {
	for parent := path.Dir(name); parent != "."; parent = path.Dir(parent) {
		if inArchive, ok := m.Lookup(parent); ok && inArchive.Type != TypeDir {
			return newError(KindPathConflict, parent,
				errors.Errorf("archive contains %s as a %s and also entries beneath it", parent, inArchive.Type))
		}

		if state := snap[parent]; state.Exists && state.Type != TypeDir {
			return newError(KindPathConflict, parent,
				errors.Errorf("%s exists as a %s but %s needs it to be a directory", parent, state.Type, name))
		}
	}

	return nil
}

func checkTypes(entry *Entry, state PathState) error {
	switch {
	case entry.Type == TypeDir && state.Type != TypeDir:
		return newError(KindPathConflict, entry.Name,
			errors.Errorf("archive has a directory where a %s exists", state.Type))
	case entry.Type != TypeDir && state.Type == TypeDir:
		return newError(KindPathConflict, entry.Name,
			errors.Errorf("archive has a %s where a directory exists", entry.Type))
	case state.Type == TypeOther:
		return newError(KindPathConflict, entry.Name, errors.New("existing path is not a regular file"))
	}

	return nil
}

func sameContent(entry *Entry, state PathState) (bool, string) {
	if entry.Type != state.Type {
		return false, "type differs"
	}

	switch entry.Type {
	case TypeFile:
		if state.Size != entry.Size {
			return false, "size differs"
		}
		if !state.crcKnown || state.CRC32 != entry.CRC32 {
			return false, "content differs"
		}
	case TypeSymlink:
		if state.Linkname != entry.Linkname {
			return false, "link target differs"
		}
	}

	return true, ""
}
