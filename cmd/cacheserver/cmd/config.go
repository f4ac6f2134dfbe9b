package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/cachecore/cmd/cacheserver/appconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the cacheserver configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the configuration and report validation errors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := appconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		if _, err := cfg.Cache.ToCacheCoreConfig(); err != nil {
			return fmt.Errorf("cache config invalid: %w", err)
		}
		fmt.Println("configuration OK")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
