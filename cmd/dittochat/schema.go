package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittochat/pkg/config"
	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [file]",
		Short: "Generate the JSON schema of the configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFile := "config.schema.json"
			if len(args) > 0 {
				outputFile = args[0]
			}

			schemaJSON, err := configSchema()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
				return fmt.Errorf("error writing schema file: %w", err)
			}

			fmt.Printf("JSON schema written to %s\n", outputFile)
			return nil
		},
	}
}

// configSchema reflects config.Config into an indented JSON schema keyed
// like the configuration file.
func configSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true, // Inline all definitions for simplicity
		FieldNameTag:              "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "DittoChat Configuration"
	schema.Description = "Configuration schema for the DittoChat server"
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshaling schema: %w", err)
	}
	return schemaJSON, nil
}
