package cmd

import (
	"github.com/spf13/cobra"

	"github.com/keylease/keylease/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Work with broker configuration files",
}

var configValidatePath string

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a broker configuration file",
	Long: `Loads and validates a configuration file the same way 'serve' does:
patterns and expressions are compiled, cross-references between bindings,
policies, roles, issuers and sources are checked. Exits non-zero on the
first problem.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configValidatePath)
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}

		logSuccess("configuration is valid: %d issuer(s), %d source(s), %d binding(s), %d policy(ies), %d role(s)",
			len(cfg.Issuers), len(cfg.Sources), len(cfg.Bindings), len(cfg.Policies), len(cfg.Roles))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().StringVarP(&configValidatePath, "config", "f", "keylease.yaml", "configuration file to validate")
}
