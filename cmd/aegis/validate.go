package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sentinel-hq/aegis/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the server.

All validation problems are reported together, one per line, so a
broken configuration can be fixed in a single pass.

Examples:
  # Validate the default config file
  aegis validate

  # Validate a specific file
  aegis validate --config /etc/aegis/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	_, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err == nil {
		fmt.Printf("✓ %s is valid\n", cfgFile)
		return nil
	}

	var verr config.ValidationError
	if errors.As(err, &verr) {
		fmt.Printf("✗ %s has %d problem(s):\n", cfgFile, len(verr.Errors))
		for _, fe := range verr.Errors {
			fmt.Printf("  - %s\n", fe.Error())
		}
		return fmt.Errorf("configuration invalid")
	}

	return err
}
