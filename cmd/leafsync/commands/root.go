// SPDX-License-Identifier: AGPL-3.0-or-later

/*
leafsync - keeps a git repository in step with an Overleaf read-only project.
It exports the project archive through a headless browser, unpacks it over the working tree, and commits and pushes any change with a generated message.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/leafsync/internal/config"
)

// NewRootCmd constructs the leafsync root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("LEAFSYNC_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "leafsync",
		Short:         "leafsync - Overleaf to git synchronisation",
		Long:          "leafsync downloads an Overleaf read-only project, extracts it into a git working tree, and commits and pushes the changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().String("config", os.Getenv("LEAFSYNC_CONFIG"), "YAML config file (default $LEAFSYNC_CONFIG)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "also write log records to stderr")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of leafsync",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leafsync version %s\n", version)
		},
	})

	cmd.AddCommand(NewSyncCommand())
	cmd.AddCommand(NewConfigCommand())

	return cmd
}

// loadConfig resolves the configuration file named by --config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
