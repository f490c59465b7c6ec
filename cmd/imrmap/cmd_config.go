package main

import (
	"github.com/spf13/cobra"

	"imrmap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective study configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadStudy(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}
