package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/predobs-cli/internal/compare"
	"github.com/KaramelBytes/predobs-cli/internal/regression"
	"github.com/KaramelBytes/predobs-cli/internal/report"
	"github.com/KaramelBytes/predobs-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	plotModel    string
	plotVariable string
	plotSource   string
	plotOutput   string
)

var plotCmd = &cobra.Command{
	Use:   "plot <csv...>",
	Short: "Render a predicted vs observed scatter plot as PNG",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadCanonical(args)
		if err != nil {
			return err
		}
		source := plotSource
		if source == "" {
			sources, err := compare.Sources(t)
			if err != nil {
				return err
			}
			if len(sources) != 1 {
				return fmt.Errorf("--source is required with several sources (%s)", strings.Join(sources, ", "))
			}
			source = sources[0]
		}
		predicted, observed, err := compare.Series(compare.View(t, source, plotModel, plotVariable))
		if err != nil {
			return err
		}
		if len(predicted) == 0 {
			return fmt.Errorf("no data for %s/%s/%s", source, plotModel, plotVariable)
		}
		s := regression.Compute(plotVariable, predicted, observed)
		png, err := report.Scatter(fmt.Sprintf("%s: %s (%s)", plotModel, plotVariable, source), plotVariable, predicted, observed, s)
		if err != nil {
			return err
		}
		out := plotOutput
		if out == "" {
			out = fmt.Sprintf("%s_%s.png", plotModel, plotVariable)
		}
		if err := utils.SafeWriteFile(out, png); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Plotted %d points to %s\n", len(predicted), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.Flags().StringVarP(&plotModel, "model", "m", "", "model name")
	plotCmd.Flags().StringVarP(&plotVariable, "variable", "v", "", "variable name")
	plotCmd.Flags().StringVarP(&plotSource, "source", "s", "", "source (file base name); optional with a single file")
	plotCmd.Flags().StringVarP(&plotOutput, "output", "o", "", "PNG path (default <model>_<variable>.png)")
	_ = plotCmd.MarkFlagRequired("model")
	_ = plotCmd.MarkFlagRequired("variable")
}
