package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/assistant"
)

// newConfigCmd creates the `leadclaw config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
		Long: `Inspect the effective configuration and manage stored secrets.

Examples:
  leadclaw config init
  leadclaw config show
  leadclaw config set-key api_key sk-...`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml",
		RunE: func(_ *cobra.Command, _ []string) error {
			const path = "config.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}
			if err := assistant.SaveConfigToFile(assistant.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Printf("Configuration written to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := resolveConfig(cmd)
			if err != nil {
				return err
			}

			// Never print secrets, even when they came from plaintext.
			if cfg.LLM.APIKey != "" {
				cfg.LLM.APIKey = "***"
			}
			if cfg.CRM.ClientSecret != "" {
				cfg.CRM.ClientSecret = "***"
			}
			if cfg.Gateway.AuthToken != "" {
				cfg.Gateway.AuthToken = "***"
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n%s", path, out)
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [name] [value]",
		Short: "Store a secret in the OS keyring",
		Long: fmt.Sprintf(`Store a secret in the OS keyring so it never lives in
config.yaml. Supported names: %s, %s.

Examples:
  leadclaw config set-key %s sk-...
  leadclaw config set-key %s <oauth-client-secret>`,
			assistant.KeyringAPIKey, assistant.KeyringCRMSecret,
			assistant.KeyringAPIKey, assistant.KeyringCRMSecret),
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			name, value := args[0], args[1]
			if name != assistant.KeyringAPIKey && name != assistant.KeyringCRMSecret {
				return fmt.Errorf("unknown secret %q (supported: %s, %s)",
					name, assistant.KeyringAPIKey, assistant.KeyringCRMSecret)
			}
			if !assistant.KeyringAvailable() {
				return fmt.Errorf("OS keyring is not available on this system")
			}
			if err := assistant.StoreKeyring(name, value); err != nil {
				return fmt.Errorf("storing secret: %w", err)
			}
			fmt.Printf("✓ %s stored in OS keyring\n", name)
			return nil
		},
	}
}
