package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imrmap/internal/pipeline"
)

var templateCmd = &cobra.Command{
	Use:   "template <dir>",
	Short: "Write a small example study to start from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := pipeline.WriteExample(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Example study written to %s\nTry: imrmap run --config %s\n", path, path)
		return nil
	},
}
