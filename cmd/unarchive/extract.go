package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ybirader/unarchive"
)

var extractCmd = &cobra.Command{
	Use:   "extract --src ARCHIVE --dest DIR",
	Short: "Extract an archive into an existing directory",
	Long: `Extract makes DIR contain the entries of ARCHIVE. Nothing is written when the
destination already matches, so running the same command twice reports
"changed": false the second time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, false)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan --src ARCHIVE --dest DIR",
	Short: "Show what extract would change without changing it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd, true)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{extractCmd, planCmd} {
		addRequestFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("src", "", "archive to extract (required)")
	cmd.Flags().String("dest", "", "existing directory to extract into (required)")
	cmd.Flags().String("creates", "", "skip the extraction when this path exists")
	cmd.Flags().String("mode", "", `permissions for extracted entries, octal ("0640") or symbolic ("u+rwX,g-rwx,o-rwx")`)
	cmd.Flags().Bool("copy", true, "stage the archive in a temporary file before reading it")
	cmd.Flags().String("format", "", "archive format: tar, tar.gz or zip (default: detect)")
	cmd.Flags().Bool("verbose", false, "include unchanged entries in the printed actions")

	cmd.MarkFlagRequired("src")
	cmd.MarkFlagRequired("dest")
}

func requestFromFlags(cmd *cobra.Command) (unarchive.Request, error) {
	src, _ := cmd.Flags().GetString("src")
	dest, _ := cmd.Flags().GetString("dest")
	creates, _ := cmd.Flags().GetString("creates")
	mode, _ := cmd.Flags().GetString("mode")
	copySrc, _ := cmd.Flags().GetBool("copy")
	formatName, _ := cmd.Flags().GetString("format")

	format, err := unarchive.ParseFormat(formatName)
	if err != nil {
		return unarchive.Request{}, err
	}

	return withDefaults(unarchive.Request{
		Src:     src,
		Dest:    dest,
		Creates: creates,
		Mode:    mode,
		Copy:    copySrc,
		Format:  format,
	}), nil
}

func withDefaults(req unarchive.Request) unarchive.Request {
	if req.Mode == "" {
		req.Mode = cfg.DefaultMode
	}

	return req
}

func runRequest(cmd *cobra.Command, dryRun bool) error {
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	if _, err := newCLI(os.Stdout, dryRun, verbose).Extract(cmd.Context(), "", req); err != nil {
		return errReported
	}

	return nil
}
