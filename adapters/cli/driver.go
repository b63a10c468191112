package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"github.com/ybirader/unarchive"
)

// Driver runs requests through the compiled unarchive binary.
type Driver struct {
	binPath string
}

func NewDriver(binPath string) *Driver {
	return &Driver{binPath}
}

// Extract runs "unarchive extract" and decodes the JSON outcome it prints. A failed
// outcome is returned together with an error.
func (d *Driver) Extract(ctx context.Context, req unarchive.Request) (*unarchive.Outcome, error) {
	args := []string{"extract", "--src", req.Src, "--dest", req.Dest, "--copy=" + strconv.FormatBool(req.Copy)}
	if req.Creates != "" {
		args = append(args, "--creates", req.Creates)
	}
	if req.Mode != "" {
		args = append(args, "--mode", req.Mode)
	}
	if req.Format != "" {
		args = append(args, "--format", string(req.Format))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	var outcome unarchive.Outcome
	if err := json.Unmarshal(stdout.Bytes(), &outcome); err != nil {
		return nil, errors.Wrapf(err, "could not decode output of unarchive binary (stderr: %s)", stderr.String())
	}

	if outcome.Failed {
		return &outcome, errors.Errorf("%s: %s", outcome.Kind, outcome.Msg)
	}
	if runErr != nil {
		return &outcome, errors.Wrap(runErr, "could not run unarchive binary")
	}

	return &outcome, nil
}
