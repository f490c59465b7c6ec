package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imrmap/internal/format"
	"imrmap/internal/store"
)

const defaultDBHint = store.DefaultDBPath

var runsFlags struct {
	db string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs, newest first",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsFlags.db, "db", "", "Archive path (default "+defaultDBHint+")")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	st, err := openArchive(runsFlags.db)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs archived.")
		return nil
	}
	tb := format.NewTable(format.ASCII)
	tb.Header("ID", "Status", "Solver", "Counties", "Started", "Took", "Error")
	for _, r := range runs {
		tb.Row(r.ID, r.Status, r.Solver, r.Counties, r.StartedAt, elapsed(r), format.Truncate(r.Error, 40))
	}
	fmt.Fprintln(out, tb.String())
	return nil
}

func elapsed(r *store.Run) string {
	start, err1 := time.Parse(time.RFC3339, r.StartedAt)
	end, err2 := time.Parse(time.RFC3339, r.FinishedAt)
	if err1 != nil || err2 != nil {
		return "-"
	}
	return format.FmtDuration(end.Sub(start))
}
