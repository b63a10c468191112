package cli

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// BuildBinary compiles the package in the working directory into a temporary binary.
func BuildBinary() (binPath string, cleanup func(), err error) {
	binName := "unarchive-test"

	if runtime.GOOS == "windows" {
		binName += ".exe"
	}

	dir, err := os.MkdirTemp("", "unarchive-bin")
	if err != nil {
		return "", nil, err
	}

	binPath = filepath.Join(dir, binName)
	build := exec.Command("go", "build", "-o", binPath)

	if err := build.Run(); err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}

	cleanup = func() {
		os.RemoveAll(dir)
	}

	return
}
