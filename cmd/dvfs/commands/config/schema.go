package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/pkg/config"
)

const schemaDraft = "https://json-schema.org/draft/2020-12/schema"

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Long: `Print a JSON schema describing config.yaml. Editors with YAML language
support can use it for completion and validation.

  dvfs config schema > config.schema.json
  dvfs config schema -o config.schema.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := generateSchema()
		if err != nil {
			return fmt.Errorf("failed to generate schema: %w", err)
		}
		if schemaOutput == "" {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", raw)
			return err
		}
		if err := os.WriteFile(schemaOutput, raw, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", schemaOutput, err)
		}
		cmd.PrintErrf("Schema written to %s\n", schemaOutput)
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "write to this file instead of stdout")
}

// generateSchema reflects config.Config using the yaml key names, inlining
// nested types so the schema is a single self-contained document.
func generateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		FieldNameTag:   "yaml",
		DoNotReference: true,
	}
	s := r.Reflect(&config.Config{})
	s.Version = schemaDraft
	s.Title = "DittoVFS Configuration"
	s.Description = "Settings read by dvfs start"
	return json.MarshalIndent(s, "", "  ")
}
