package cmd

import (
	"fmt"

	"github.com/KaramelBytes/predobs-cli/internal/compare"
	"github.com/KaramelBytes/predobs-cli/internal/dataset"
	"github.com/spf13/cobra"
)

var listModel string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources, models or variables in canonical CSV files",
}

func listRunner(what func(t *dataset.Table) ([]string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		t, err := loadCanonical(args)
		if err != nil {
			return err
		}
		items, err := what(t)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No entries found")
			return nil
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", it)
		}
		return nil
	}
}

var listSourcesCmd = &cobra.Command{
	Use:   "sources <csv...>",
	Short: "List sources (file base names)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  listRunner(compare.Sources),
}

var listModelsCmd = &cobra.Command{
	Use:   "models <csv...>",
	Short: "List model names",
	Args:  cobra.MinimumNArgs(1),
	RunE:  listRunner(compare.Models),
}

var listVariablesCmd = &cobra.Command{
	Use:   "variables <csv...>",
	Short: "List the variables of a model across all sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: listRunner(func(t *dataset.Table) ([]string, error) {
		return compare.Variables(t, listModel)
	}),
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listSourcesCmd, listModelsCmd, listVariablesCmd)
	listVariablesCmd.Flags().StringVarP(&listModel, "model", "m", "", "model name")
	_ = listVariablesCmd.MarkFlagRequired("model")
}
