package main

import (
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push [local-dir] [prefix]",
	Short: "Upload a local checkpoint to remote storage",
	Long: `Push uploads every regular file under the local directory to the remote
store, keyed by the checkpoint prefix plus each file's relative path.

Arguments default to CKPT_OUTPUT_DIR and CKPT_PREFIX from the environment.
The hub backend is read-only; push requires an S3 bucket.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		localDir := cfg.OutputDir
		prefix := cfg.Prefix
		if len(args) > 0 {
			localDir = args[0]
		}
		if len(args) > 1 {
			prefix = args[1]
		}

		ctx, cancel := signalContext()
		defer cancel()

		syncer, err := newSyncer(ctx)
		if err != nil {
			return err
		}

		report, err := syncer.Push(ctx, localDir, prefix)
		if err != nil {
			return err
		}
		return logReport(report, "push")
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
