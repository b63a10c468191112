// Package main is the entry point for the unarchive CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ybirader/unarchive"
	"github.com/ybirader/unarchive/internal/config"
	"github.com/ybirader/unarchive/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	v      = viper.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

// errReported marks failures whose outcome has already been printed.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "unarchive",
	Short: "unarchive idempotently extracts tar, tar.gz and zip archives.",
	Long: `unarchive extracts an archive into an existing directory and reports whether
anything changed. Entries already present with the same content are left alone,
permissions are reconciled against --mode, and --creates skips the extraction
entirely once a path exists.

Every request prints a JSON outcome on stdout. Logs go to stderr.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")

		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		if logger, err = logging.NewLogger(cfg.LogLevel); err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./unarchive.yaml or ~/.config/unarchive/unarchive.yaml)")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.Int("concurrency", 0, "number of goroutines checksumming existing files (default GOMAXPROCS)")

	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("concurrency", flags.Lookup("concurrency"))
}

func newCLI(out io.Writer, dryRun, verbose bool) *unarchive.ExtractorCLI {
	return &unarchive.ExtractorCLI{
		Fs:          afero.NewOsFs(),
		Logger:      logger,
		Concurrency: cfg.Concurrency,
		DryRun:      dryRun,
		Verbose:     verbose,
		Out:         out,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "unarchive:", err)
		}
		stop()
		os.Exit(1)
	}
}
