package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect atnsim configuration",
		Long: `View the effective configuration after defaults, the config file
(~/.atnsim/config.yaml unless --config is given) and ATNSIM_* environment
overrides are applied.

Examples:
  atnsim config show
  atnsim config show --json
  ATNSIM_MAX_ERROR=1e-9 atnsim config show`,
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// Redact the token before serialization to prevent leakage
			redacted := *cfg
			redacted.Output.Influx.Token = cfg.Output.Influx.RedactedToken()

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(redacted)
			}
			data, err := yaml.Marshal(&redacted)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
