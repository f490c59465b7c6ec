// imrmap maps infant mortality by county: it reshapes the study workbook,
// fits the spatial Poisson model and writes the paper's tables and figures.
//
// Usage:
//
//	imrmap run      [--config study.yaml] [--solver laplace|inla|stub] [--out dir]
//	imrmap validate [--config study.yaml]
//	imrmap report   --run <id> [--db path] [--format ascii|markdown|latex] [--write dir]
//	imrmap runs     [--db path]
//	imrmap template <dir>
//	imrmap config   [--config study.yaml]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	config    string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "imrmap",
	Short: "Spatio-temporal disease mapping of infant mortality",
	Long: "imrmap fits a Poisson model with a BYM spatial effect and a per-county\n" +
		"period effect to county infant mortality data and writes the result\n" +
		"tables and figures.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootFlags.config, "config", "c", "study.yaml", "Study file (YAML or JSON)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from study file)")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json (default from study file)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
