package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KaramelBytes/predobs-cli/internal/compare"
	"github.com/KaramelBytes/predobs-cli/internal/report"
	"github.com/KaramelBytes/predobs-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	statsModel  string
	statsFormat string
	statsOutput string
	statsStrict bool
)

var statsCmd = &cobra.Command{
	Use:   "stats <csv...>",
	Short: "Compare regression statistics across canonical CSV files",
	Long: `Fits predicted against observed for every variable of a model in each
file and prints the statistics side by side. With exactly two files the
second (in file-name order) is the baseline and differences larger than 1%
of it are flagged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(strings.TrimSpace(statsFormat))
		switch format {
		case "markdown", "md", "csv", "yaml":
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown, csv or yaml)", statsFormat)
		}
		t, err := loadCanonical(args)
		if err != nil {
			return err
		}
		sources, err := compare.Sources(t)
		if err != nil {
			return err
		}
		models := []string{statsModel}
		if statsModel == "" {
			if models, err = compare.Models(t); err != nil {
				return err
			}
		}
		var tables []*compare.Table
		flagged := 0
		for _, m := range models {
			ct, err := compare.Compare(t, sources, m)
			if err != nil {
				return err
			}
			if len(ct.Rows) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: no data for model %q\n", m)
			}
			flagged += len(ct.Flagged())
			tables = append(tables, ct)
		}

		var buf bytes.Buffer
		switch format {
		case "csv":
			if err := report.WriteCSV(&buf, tables...); err != nil {
				return err
			}
		case "yaml":
			for i, ct := range tables {
				b, err := report.YAML(ct)
				if err != nil {
					return err
				}
				if i > 0 {
					buf.WriteString("---\n")
				}
				buf.Write(b)
			}
		default:
			for i, ct := range tables {
				if i > 0 {
					buf.WriteString("\n")
				}
				buf.WriteString(report.Markdown(ct))
			}
		}

		if statsOutput != "" {
			if err := utils.SafeWriteFile(statsOutput, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s comparison for %d model(s) to %s\n", format, len(tables), statsOutput)
		} else {
			_, _ = cmd.OutOrStdout().Write(buf.Bytes())
		}
		if statsStrict && flagged > 0 {
			return fmt.Errorf("%d statistic(s) exceed the %.0f%% tolerance", flagged, compare.Tolerance*100)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVarP(&statsModel, "model", "m", "", "model to compare (default: all models)")
	statsCmd.Flags().StringVarP(&statsFormat, "format", "f", "markdown", "output format: markdown | csv | yaml")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "", "write the comparison to a file instead of stdout")
	statsCmd.Flags().BoolVar(&statsStrict, "strict", false, "exit non-zero when any statistic is flagged")
}
