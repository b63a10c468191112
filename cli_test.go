package unarchive_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/spf13/afero"
	"github.com/ybirader/unarchive"
	"github.com/ybirader/unarchive/internal/testutils"
	"github.com/ybirader/unarchive/specifications"
	"go.uber.org/zap"
)

// inProcessDriver runs requests through ExtractorCLI on the OS filesystem.
type inProcessDriver struct {
	out io.Writer
}

func (d inProcessDriver) Extract(ctx context.Context, req unarchive.Request) (*unarchive.Outcome, error) {
	cli := unarchive.ExtractorCLI{Fs: afero.NewOsFs(), Logger: zap.NewNop(), Concurrency: 2, Out: d.out}
	return cli.Extract(ctx, "", req)
}

func TestExtractorCLI(t *testing.T) {
	ctx := context.Background()

	newFixture := func(t *testing.T) (afero.Fs, string) {
		fsys := afero.NewMemMapFs()
		testutils.WriteArchive(t, fsys, "/src/site.zip", "zip",
			testutils.Entry{Name: "index.html", Body: "<h1>hi</h1>"},
			testutils.Entry{Name: "css/"},
			testutils.Entry{Name: "css/site.css", Body: "h1{}"},
		)
		assert.NoError(t, fsys.MkdirAll("/srv", 0o755))

		return fsys, "/src/site.zip"
	}

	t.Run("prints the outcome as JSON", func(t *testing.T) {
		fsys, src := newFixture(t)
		var out bytes.Buffer
		cli := unarchive.ExtractorCLI{Fs: fsys, Concurrency: 1, Out: &out}

		outcome, err := cli.Extract(ctx, "deploy site", unarchive.Request{Src: src, Dest: "/srv"})
		assert.NoError(t, err)

		var printed unarchive.Outcome
		assert.NoError(t, json.Unmarshal(out.Bytes(), &printed))
		assert.Equal(t, "deploy site", printed.Name)
		assert.True(t, printed.Changed)
		assert.Equal(t, unarchive.FormatZip, printed.Format)
		assert.Equal(t, 3, len(outcome.Actions))
		assert.Contains(t, out.String(), `"kind":"create"`)
	})

	t.Run("omits noop actions unless verbose", func(t *testing.T) {
		fsys, src := newFixture(t)
		req := unarchive.Request{Src: src, Dest: "/srv"}

		cli := unarchive.ExtractorCLI{Fs: fsys, Concurrency: 1, Out: io.Discard}
		_, err := cli.Extract(ctx, "", req)
		assert.NoError(t, err)

		outcome, err := cli.Extract(ctx, "", req)
		assert.NoError(t, err)
		assert.False(t, outcome.Changed)
		assert.Equal(t, 0, len(outcome.Actions))

		cli.Verbose = true
		outcome, err = cli.Extract(ctx, "", req)
		assert.NoError(t, err)
		assert.Equal(t, 3, len(outcome.Actions))
	})

	t.Run("plans without extracting on dry run", func(t *testing.T) {
		fsys, src := newFixture(t)
		cli := unarchive.ExtractorCLI{Fs: fsys, Concurrency: 1, DryRun: true, Out: io.Discard}

		outcome, err := cli.Extract(ctx, "", unarchive.Request{Src: src, Dest: "/srv"})
		assert.NoError(t, err)

		assert.True(t, outcome.Changed)
		exists, err := afero.Exists(fsys, "/srv/index.html")
		assert.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("prints failures with their kind", func(t *testing.T) {
		fsys, src := newFixture(t)
		var out bytes.Buffer
		cli := unarchive.ExtractorCLI{Fs: fsys, Concurrency: 1, Out: &out}

		_, err := cli.Extract(ctx, "", unarchive.Request{Src: src, Dest: "/missing"})
		assert.IsError(t, err, unarchive.ErrDestinationNotWritable)

		var printed map[string]any
		assert.NoError(t, json.Unmarshal(out.Bytes(), &printed))
		assert.Equal(t, true, printed["failed"])
		assert.Equal(t, "DestinationNotWritable", printed["kind"])
		assert.True(t, strings.Contains(printed["msg"].(string), "/missing"))
	})

	t.Run("rejects an invalid concurrency", func(t *testing.T) {
		cli := unarchive.ExtractorCLI{Fs: afero.NewMemMapFs(), Concurrency: 0, Out: io.Discard}

		_, err := cli.Extract(ctx, "", unarchive.Request{})
		assert.IsError(t, err, unarchive.ErrMinConcurrency)
	})

	t.Run("satisfies the extraction specifications", func(t *testing.T) {
		specifications.Extract(t, inProcessDriver{out: io.Discard})
	})
}

// BenchmarkExtractorCLI measures a re-run against an already extracted destination,
// the common case for repeated task runs.
func BenchmarkExtractorCLI(b *testing.B) {
	fsys := afero.NewMemMapFs()
	entries := make([]testutils.Entry, 0, 200)
	for i := 0; i < cap(entries); i++ {
		entries = append(entries, testutils.Entry{
			Name: fmt.Sprintf("data/%02d/file%03d.txt", i%7, i),
			Body: strings.Repeat("payload ", i+1),
		})
	}
	testutils.WriteArchive(b, fsys, "/src/bench.tar.gz", "tar.gz", entries...)
	assert.NoError(b, fsys.MkdirAll("/dest", 0o755))

	cli := unarchive.ExtractorCLI{Fs: fsys, Concurrency: 4, Out: io.Discard}
	req := unarchive.Request{Src: "/src/bench.tar.gz", Dest: "/dest"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		cli.Extract(context.Background(), "", req)
	}
}
