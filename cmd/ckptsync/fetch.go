package main

import (
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [prefix] [output-dir]",
	Short: "Download a checkpoint from remote storage",
	Long: `Fetch downloads every object under the checkpoint prefix into the output
directory, mapping keys to local paths with the configured layout policy.

Arguments default to CKPT_PREFIX and CKPT_OUTPUT_DIR from the environment.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := cfg.Prefix
		outputDir := cfg.OutputDir
		if len(args) > 0 {
			prefix = args[0]
		}
		if len(args) > 1 {
			outputDir = args[1]
		}

		ctx, cancel := signalContext()
		defer cancel()

		syncer, err := newSyncer(ctx)
		if err != nil {
			return err
		}

		report, err := syncer.Fetch(ctx, prefix, outputDir)
		if err != nil {
			return err
		}
		return logReport(report, "fetch")
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
