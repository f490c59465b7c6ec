package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imrmap/internal/display"
	"imrmap/internal/format"
	"imrmap/internal/logging"
	"imrmap/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the study inputs without fitting",
	Long: "Loads the dataset, reshapes it, checks the adjacency matrix and\n" +
		"assembles the model. Prints the dataset diagnostics.",
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadStudy(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	in, err := pipeline.LoadInputs(cfg)
	if err != nil {
		return err
	}
	prep, err := pipeline.Prepare(cfg, in, logging.New("cli"))
	if err != nil {
		return err
	}

	d := prep.Diagnostics
	tb := format.NewTable(format.ASCII)
	tb.Header("Check", "Value")
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	tb.Row("Counties", d.Counties)
	tb.Row("Observations", d.Rows)
	for _, p := range prep.Long.Periods() {
		tb.Row("Global rate, "+p.DisplayLabel(), fmt.Sprintf("%.3f", d.ByPeriod[p.Ordinal]))
	}
	tb.Row("Global rate, all periods", fmt.Sprintf("%.3f", d.Overall))
	tb.Row("Adjacent pairs", prep.Graph.Edges())
	tb.Row("Mean neighbours", fmt.Sprintf("%.2f", prep.Graph.MeanDegree()))
	tb.Row("Connected components", len(prep.Graph.Components()))
	islands := prep.Graph.Islands()
	tb.Row("Islands", len(islands))
	if in.Labels != nil {
		tb.Row("Unlabelled counties", len(in.Labels.Missing(prep.Long.Counties())))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tb.String())
	if len(islands) > 0 {
		var names []string
		for _, c := range prep.Long.Counties() {
			if prep.Graph.Degree(c.ID) == 0 {
				names = append(names, in.Labels.CountyWithCode(c))
			}
		}
		fmt.Fprintf(out, "Islands: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(out, "Model:   %s\n", prep.Spec.Formula())
	fmt.Fprintf(out, "Figures: %s\n", display.FigurePath(cfg.Report.Figures))
	return nil
}
