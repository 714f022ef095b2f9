// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bartekus/leafsync/cmd/leafsync/internal/clierr"
)

// NewConfigCommand returns the `leafsync config` command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Prints the configuration after applying the config file, .env and environment,
with the API key redacted. The configuration is printed even when it is invalid;
the command then exits 1 with the validation error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return clierr.Failure("loading config", err)
			}

			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("marshaling YAML: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return fmt.Errorf("writing YAML output: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return clierr.Failure("invalid config", err)
			}
			return nil
		},
	}
}
