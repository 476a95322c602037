package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// Config represents configuration for the asmlens tool
type Config struct {
	Debug           bool   `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
	CompileCommands string `json:"compileCommands" jsonschema:"title=Compile Commands,description=Path to compile_commands.json"`
	Port            int    `json:"port" jsonschema:"title=Port,description=Port for the web server"`
	WebRoot         string `json:"webRoot" jsonschema:"title=Web Root,description=Directory of static files for the web UI"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for configuration",
	Long:   "Generate JSON schema for the asmlens configuration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		bts, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Println(string(bts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
