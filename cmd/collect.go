package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/KaramelBytes/predobs-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	colMode       string
	colExportDir  string
	colRunner     string
	colOutput     string
	colTimeoutSec int
)

var collectCmd = &cobra.Command{
	Use:   "collect <workdir>",
	Short: "Extract predicted/observed pairs from every artifact under a work directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc, err := collectConfig(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := pipeline.New(pc, pipeline.WithLogger(logger)).Run(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range res.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s: %v\n", f.Artifact, f.Err)
		}
		fmt.Fprintf(out, "✓ Collected %d rows from %d %s artifact(s) into %s\n", res.Rows, res.Artifacts-len(res.Failures), res.Mode, res.Output)
		if n := len(res.Failures); n > 0 {
			fmt.Fprintf(out, "%d artifact(s) failed\n", n)
		}
		return nil
	},
}

// collectConfig merges the loaded configuration with command flags.
func collectConfig(cmd *cobra.Command, workDir string) (pipeline.Config, error) {
	pc := pipeline.Config{WorkDir: workDir}
	modeName := colMode
	if cfg != nil {
		pc.ExportDir = cfg.ExportDir
		pc.RunnerBinary = cfg.RunnerBinary
		pc.RunnerMode = cfg.RunnerMode
		pc.RunnerTimeout = cfg.RunnerTimeout()
		pc.LegacyExt = cfg.LegacyExt
		pc.RelationalExt = cfg.RelationalExt
		pc.GroupSuffix = cfg.GroupSuffix
		pc.Reserved = cfg.ReservedTables
		if !cmd.Flags().Changed("mode") {
			modeName = cfg.Mode
		}
	}
	mode, err := pipeline.ParseMode(modeName)
	if err != nil {
		return pc, err
	}
	pc.Mode = mode
	f := cmd.Flags()
	if f.Changed("export-dir") {
		pc.ExportDir = colExportDir
	}
	if f.Changed("runner") {
		pc.RunnerBinary = colRunner
	}
	if f.Changed("output") {
		pc.Output = colOutput
	}
	if f.Changed("runner-timeout") {
		pc.RunnerTimeout = time.Duration(colTimeoutSec) * time.Second
	}
	if pc.ExportDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return pc, err
		}
		pc.ExportDir = wd
	}
	return pc, nil
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringVar(&colMode, "mode", "auto", "artifact format: auto | legacy | relational")
	collectCmd.Flags().StringVar(&colExportDir, "export-dir", "", "directory for the combined CSV (default from config)")
	collectCmd.Flags().StringVar(&colRunner, "runner", "", "path to the legacy run tool (default: found in the nearest Model directory)")
	collectCmd.Flags().StringVarP(&colOutput, "output", "o", "", "output file name (default Combined.csv or CombinedNextGen.csv)")
	collectCmd.Flags().IntVar(&colTimeoutSec, "runner-timeout", 600, "seconds before a run tool invocation is killed (0 = none)")
}
