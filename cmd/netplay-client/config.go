package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"netplay/pkg/config"
)

func configCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON schema of the config file",
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := json.MarshalIndent(buildSchema(), "", "  ")
				if err != nil {
					return fmt.Errorf("marshal schema: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				cfg.Session = cfg.Session.Redacted()
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			},
		},
	)
	return cmd
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(new(config.Config))
	schema.Title = "netplay-client configuration"
	schema.Description = "Validates netplay.yaml; every key can be overridden with NETPLAY_<SECTION>_<KEY>"
	return schema
}
