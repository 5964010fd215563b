// Package commands implements the LeadClaw CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leadclaw",
		Short: "LeadClaw - AI lead assistant for your CRM",
		Long: `LeadClaw is an AI assistant that handles inbound leads end to end:
form submissions and SMS replies come in through a webhook, the assistant
reconciles the contact against your CRM, keeps one open opportunity per
lead, books site visits and answers over SMS.

Examples:
  leadclaw serve
  leadclaw chat "how many leads came in from SW postcodes this week?"
  leadclaw oauth login --code <authorization-code>
  leadclaw setup`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newOAuthCmd(),
		newSetupCmd(),
		newConfigCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
