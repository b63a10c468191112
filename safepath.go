package unarchive

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// cleanEntryName turns an archive name into a slash separated path relative to the
// destination. ok is false for names that denote the destination itself ("./").
func cleanEntryName(name string) (clean string, ok bool, err error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.VolumeName(name) != "" {
		return "", false, newError(KindUnsafePath, name, errors.New("absolute path in archive"))
	}

	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", false, newError(KindUnsafePath, name, errors.New("path escapes destination"))
		}
	}

	clean = path.Clean(slashed)
	if clean == "." {
		return "", false, nil
	}

	return clean, true, nil
}

// validateLink rejects symlinks whose target would resolve outside the destination.
func validateLink(entryName, target string) error {
	if target == "" {
		return newError(KindUnsafePath, entryName, errors.New("empty symlink target"))
	}
	if strings.HasPrefix(target, "/") || filepath.IsAbs(target) {
		return newError(KindUnsafePath, entryName, errors.Errorf("symlink target %s is absolute", target))
	}

	resolved := path.Clean(path.Join(path.Dir(entryName), target))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return newError(KindUnsafePath, entryName, errors.Errorf("symlink target %s escapes destination", target))
	}

	return nil
}

// destPath joins a cleaned entry name onto the destination directory.
func destPath(dest, name string) string {
	return filepath.Join(dest, filepath.FromSlash(name))
}
