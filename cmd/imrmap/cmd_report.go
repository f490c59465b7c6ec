package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imrmap/internal/format"
	"imrmap/internal/report"
)

var reportFlags struct {
	runID    string
	db       string
	format   string
	writeDir string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print or re-write the tables of an archived run",
	RunE:  runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.runID, "run", "", "Run ID (required)")
	f.StringVar(&reportFlags.db, "db", "", "Archive path (default "+defaultDBHint+")")
	f.StringVarP(&reportFlags.format, "format", "f", "ascii", "Table format: ascii, markdown or latex")
	f.StringVarP(&reportFlags.writeDir, "write", "w", "", "Also write the LaTeX tables to this directory")

	_ = reportCmd.MarkFlagRequired("run")
}

func runReport(cmd *cobra.Command, _ []string) error {
	mode, err := format.ParseMode(reportFlags.format)
	if err != nil {
		return err
	}
	st, err := openArchive(reportFlags.db)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(reportFlags.runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found in %s", reportFlags.runID, st.Path())
	}
	tables, err := st.ListTables(run.ID)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("run %s has no tables (status %s)", run.ID, run.Status)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.Print(tables, mode))
	if reportFlags.writeDir != "" {
		opts := report.DefaultOptions()
		opts.OutDir = reportFlags.writeDir
		paths, err := report.New(opts).WriteTables(tables)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(out, "wrote %s\n", p)
		}
	}
	return nil
}
