package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ybirader/unarchive/taskargs"
)

var runCmd = &cobra.Command{
	Use:   "run TASKS.yml",
	Short: "Run the unarchive tasks listed in a YAML file",
	Long: `Run reads a list of tasks and runs them in order, printing one JSON outcome
per task. Each task names the unarchive module in any of the usual forms:

  - name: unpack release
    unarchive: src=release.tgz dest=/srv/app copy=no

  - action: unarchive src=site.zip dest=/srv/www mode=0640

  - unarchive:
      src: data.tar
      dest: /srv/data
      creates: /srv/data/.done

The run stops at the first failing task.`,
	Args: cobra.ExactArgs(1),
	RunE: runTasks,
}

func init() {
	runCmd.Flags().Bool("check", false, "plan every task without changing anything")
	runCmd.Flags().Bool("verbose", false, "include unchanged entries in the printed actions")

	rootCmd.AddCommand(runCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "could not open tasks")
	}
	defer f.Close()

	tasks, err := taskargs.LoadTasks(f)
	if err != nil {
		return err
	}

	check, _ := cmd.Flags().GetBool("check")
	verbose, _ := cmd.Flags().GetBool("verbose")
	cli := newCLI(os.Stdout, check, verbose)

	for i, task := range tasks {
		if !task.Local() {
			return errors.Errorf("task %d: cannot delegate to %s", i+1, task.DelegateTo)
		}

		req, err := taskargs.ToRequest(task.Args)
		if err != nil {
			return errors.Wrapf(err, "task %d", i+1)
		}

		logger.Info("running task", zap.Int("task", i+1), zap.String("name", task.Name))
		if _, err := cli.Extract(cmd.Context(), task.Name, withDefaults(req)); err != nil {
			return errReported
		}
	}

	return nil
}

