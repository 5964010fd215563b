package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/assistant"
)

// newSetupCmd creates the `leadclaw setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Start an interactive wizard to create your initial config.yaml.
Asks for the business name, CRM credentials, calendar and pipeline ids.
Secrets go to the OS keyring when available, never into the file.

Examples:
  leadclaw setup`,
		RunE: runSetup,
	}
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := assistant.DefaultConfig()

	var (
		apiKey       string
		clientSecret string
		serviceAreas string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Business name").
				Description("Shown to customers in the assistant's replies").
				Value(&cfg.Assistant.BusinessName),
			huh.NewInput().
				Title("Service area postcodes").
				Description("Comma-separated outward prefixes, e.g. SW, SE1, N1").
				Value(&serviceAreas),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("CRM location ID").
				Value(&cfg.CRM.LocationID),
			huh.NewInput().
				Title("CRM OAuth client ID").
				Value(&cfg.CRM.ClientID),
			huh.NewInput().
				Title("CRM OAuth client secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret),
			huh.NewInput().
				Title("Calendar ID").
				Description("Calendar used for site-visit appointments").
				Value(&cfg.CRM.CalendarID),
			huh.NewInput().
				Title("Pipeline ID").
				Value(&cfg.CRM.PipelineID),
			huh.NewInput().
				Title("Pipeline stage ID").
				Description("Stage new opportunities start in").
				Value(&cfg.CRM.PipelineStageID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("LLM model").
				Value(&cfg.LLM.Model),
			huh.NewInput().
				Title("LLM API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	for _, area := range strings.Split(serviceAreas, ",") {
		if area = strings.TrimSpace(area); area != "" {
			cfg.Assistant.ServiceAreas = append(cfg.Assistant.ServiceAreas, area)
		}
	}

	// Secrets go to the keyring when we have one; otherwise they stay in
	// the config file and SaveConfigToFile replaces them with env
	// references.
	keyringOK := assistant.KeyringAvailable()
	storeSecret := func(name, value string) bool {
		if value == "" {
			return true
		}
		if keyringOK {
			if err := assistant.StoreKeyring(name, value); err == nil {
				fmt.Printf("✓ %s stored in OS keyring\n", name)
				return true
			}
		}
		fmt.Printf("⚠ keyring unavailable, %s will be sanitized to an env reference in config.yaml\n", name)
		return false
	}
	if !storeSecret(assistant.KeyringAPIKey, apiKey) {
		cfg.LLM.APIKey = apiKey
	}
	if !storeSecret(assistant.KeyringCRMSecret, clientSecret) {
		cfg.CRM.ClientSecret = clientSecret
	}

	const path = "config.yaml"
	if err := assistant.SaveConfigToFile(cfg, path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("\n✓ Configuration written to %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. leadclaw oauth login --code <authorization-code>")
	fmt.Println("  2. leadclaw serve")
	return nil
}
