package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/predobs-cli/internal/config"
	"github.com/KaramelBytes/predobs-cli/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set predobs configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No config loaded")
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "export_dir: %s\n", cfg.ExportDir)
		fmt.Fprintf(out, "mode: %s\n", cfg.Mode)
		if cfg.RunnerBinary != "" {
			fmt.Fprintf(out, "runner_binary: %s\n", cfg.RunnerBinary)
		}
		fmt.Fprintf(out, "runner_mode: %s\n", cfg.RunnerMode)
		fmt.Fprintf(out, "runner_timeout_sec: %d\n", cfg.RunnerTimeoutSec)
		fmt.Fprintf(out, "legacy_ext: %s\n", cfg.LegacyExt)
		fmt.Fprintf(out, "relational_ext: %s\n", cfg.RelationalExt)
		fmt.Fprintf(out, "group_suffix: %s\n", cfg.GroupSuffix)
		fmt.Fprintf(out, "reserved_tables: %s\n", strings.Join(cfg.ReservedTables, ","))
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "export_dir":
			cfg.ExportDir = val
		case "mode":
			m, err := pipeline.ParseMode(val)
			if err != nil {
				return err
			}
			cfg.Mode = string(m)
		case "runner_binary":
			cfg.RunnerBinary = val
		case "runner_mode":
			cfg.RunnerMode = val
		case "runner_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i < 0 {
				return fmt.Errorf("invalid int for runner_timeout_sec: %v", val)
			}
			cfg.RunnerTimeoutSec = i
		case "legacy_ext", "relational_ext":
			if !strings.HasPrefix(val, ".") {
				val = "." + val
			}
			if key == "legacy_ext" {
				cfg.LegacyExt = val
			} else {
				cfg.RelationalExt = val
			}
		case "group_suffix":
			cfg.GroupSuffix = val
		case "reserved_tables":
			var names []string
			for _, n := range strings.Split(val, ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
			cfg.ReservedTables = names
		case "log_level":
			if _, err := zapcore.ParseLevel(val); err != nil {
				return fmt.Errorf("invalid log_level: %s", val)
			}
			cfg.LogLevel = val
		default:
			return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(cfgpkg.Keys, ", "))
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
