package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imrmap/internal/format"
	"imrmap/internal/logging"
	"imrmap/internal/pipeline"
	"imrmap/internal/report"
)

var runFlags struct {
	solver    string
	outDir    string
	noArchive bool
	quiet     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit the model and write tables and figures",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.solver, "solver", "", "Override the engine: laplace, inla or stub")
	f.StringVarP(&runFlags.outDir, "out", "o", "", "Override the output directory")
	f.BoolVar(&runFlags.noArchive, "no-archive", false, "Do not record the run in the archive")
	f.BoolVarP(&runFlags.quiet, "quiet", "q", false, "Do not print the tables")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadStudy(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if runFlags.solver != "" {
		cfg.Solver.Kind = runFlags.solver
	}
	if runFlags.outDir != "" {
		cfg.Report.OutDir = runFlags.outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New("cli")

	in, err := pipeline.LoadInputs(cfg)
	if err != nil {
		return err
	}
	prep, err := pipeline.Prepare(cfg, in, logger)
	if err != nil {
		return err
	}
	s, err := pipeline.NewSolver(cfg, prep)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithStudy(rootFlags.config)}
	if cfg.Archive.Path != "" && !runFlags.noArchive {
		st, err := openArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, pipeline.WithStore(st))
	}

	res, err := pipeline.New(cfg, s, opts...).RunPrepared(cmd.Context(), in, prep)
	if err != nil {
		if res != nil && res.RunID != "" {
			return fmt.Errorf("run %s: %w", res.RunID, err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if !runFlags.quiet {
		mode, _ := format.ParseMode(cfg.Report.TableFormat)
		fmt.Fprintln(out, report.Print(res.Tables.All(), mode))
	}
	if res.RunID != "" {
		fmt.Fprintf(out, "Run:   %s\n", res.RunID)
	}
	fmt.Fprintf(out, "Files: %d written to %s\n", len(res.Files), cfg.Report.OutDir)
	for _, f := range res.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
