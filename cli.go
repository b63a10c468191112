package unarchive

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Outcome is the JSON document printed for every request the CLI runs.
type Outcome struct {
	Name    string   `json:"name,omitempty"`
	Changed bool     `json:"changed"`
	Skipped bool     `json:"skipped,omitempty"`
	Failed  bool     `json:"failed,omitempty"`
	Kind    Kind     `json:"kind,omitempty"`
	Msg     string   `json:"msg"`
	RunID   string   `json:"run_id,omitempty"`
	Format  Format   `json:"format,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

type ExtractorCLI struct {
	Fs          afero.Fs
	Logger      *zap.Logger
	Concurrency int
	// DryRun plans requests without applying them.
	DryRun bool
	// Verbose includes noop actions in the printed outcome.
	Verbose bool
	Out     io.Writer
}

// Extract runs req, prints its outcome and returns the extraction error, if any.
func (c *ExtractorCLI) Extract(ctx context.Context, name string, req Request) (*Outcome, error) {
	extractor, err := NewExtractor(c.Fs, ExtractorConcurrency(c.Concurrency), WithLogger(c.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "could not create extractor")
	}

	run := extractor.Extract
	if c.DryRun {
		run = extractor.Plan
	}

	result, runErr := run(ctx, req)
	outcome := c.outcome(name, result, runErr)

	if err := json.NewEncoder(c.Out).Encode(outcome); err != nil {
		return outcome, errors.Wrap(err, "could not write outcome")
	}

	return outcome, runErr
}

func (c *ExtractorCLI) outcome(name string, result *Result, err error) *Outcome {
	if err != nil {
		return &Outcome{Name: name, Failed: true, Kind: KindOf(err), Msg: err.Error()}
	}

	o := &Outcome{
		Name:    name,
		Changed: result.Changed,
		Skipped: result.Skipped,
		Msg:     result.Msg,
		RunID:   result.Diagnostics.RunID,
		Format:  result.Diagnostics.Format,
	}
	for _, a := range result.Diagnostics.Actions {
		if c.Verbose || a.Mutates() {
			o.Actions = append(o.Actions, a)
		}
	}

	return o
}
