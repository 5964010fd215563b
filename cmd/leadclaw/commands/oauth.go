package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/assistant"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

var oauthCode string

// newOAuthCmd creates the oauth command group.
func newOAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "CRM OAuth session management",
		Long: `Manage the OAuth session with the CRM.

The daemon refreshes the access token automatically; these commands
handle the initial authorization and let you inspect the session.

Examples:
  leadclaw oauth login --code <authorization-code>
  leadclaw oauth status
  leadclaw oauth logout`,
	}

	cmd.AddCommand(newOAuthLoginCmd())
	cmd.AddCommand(newOAuthStatusCmd())
	cmd.AddCommand(newOAuthLogoutCmd())

	return cmd
}

func newOAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange an authorization code for tokens",
		Long: `Complete the OAuth flow by exchanging the authorization code the
CRM marketplace redirect handed you. The resulting tokens are stored in
the local database and refreshed automatically from then on.

Examples:
  leadclaw oauth login --code 7f3a9c...`,
		RunE: runOAuthLogin,
	}

	cmd.Flags().StringVar(&oauthCode, "code", "", "authorization code from the OAuth redirect")
	cmd.MarkFlagRequired("code")

	return cmd
}

func newOAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the CRM session status",
		RunE:  runOAuthStatus,
	}
}

func newOAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored CRM tokens",
		RunE:  runOAuthLogout,
	}
}

// openSessions builds a session manager over the configured database.
// The caller owns the returned DB handle.
func openSessions(cmd *cobra.Command) (*crm.SessionManager, *store.DB, *assistant.Config, error) {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	assistant.ResolveSecrets(cfg, slog.Default())

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	sessions := crm.NewSessionManager(crm.SessionConfig{
		TokenURL:     cfg.CRM.TokenURL,
		ClientID:     cfg.CRM.ClientID,
		ClientSecret: cfg.CRM.ClientSecret,
	}, db, nil)

	return sessions, db, cfg, nil
}

func runOAuthLogin(cmd *cobra.Command, _ []string) error {
	sessions, db, cfg, err := openSessions(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec, err := sessions.Exchange(ctx, cfg.CRM.Integration, oauthCode)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}

	fmt.Println("✓ Login successful!")
	fmt.Printf("  Integration: %s\n", cfg.CRM.Integration)
	fmt.Printf("  Expires: %s\n", rec.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runOAuthStatus(cmd *cobra.Command, _ []string) error {
	sessions, db, cfg, err := openSessions(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := sessions.Current(ctx, cfg.CRM.Integration)
	if errors.Is(err, crm.ErrTokenNotFound) {
		fmt.Println("Not authenticated.")
		fmt.Println("\nTo login, run:")
		fmt.Println("  leadclaw oauth login --code <authorization-code>")
		return nil
	}
	if err != nil {
		return err
	}

	remaining := time.Until(rec.ExpiresAt)
	icon := "✓"
	status := "valid"
	switch {
	case remaining <= 0:
		icon, status = "✗", "expired"
	case !rec.Fresh(time.Now()):
		icon, status = "⚠", "expiring soon"
	}

	fmt.Printf("%s %s\n", icon, cfg.CRM.Integration)
	fmt.Printf("  Status: %s", status)
	if remaining > 0 {
		fmt.Printf(" (expires in %s)", remaining.Round(time.Minute))
	}
	fmt.Println()
	return nil
}

func runOAuthLogout(cmd *cobra.Command, _ []string) error {
	_, db, cfg, err := openSessions(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// Overwrite with an empty blob so the next API call fails loudly
	// instead of reusing a revoked session.
	if err := db.SaveTokenData(context.Background(), cfg.CRM.Integration, nil); err != nil {
		return fmt.Errorf("clearing tokens: %w", err)
	}

	fmt.Printf("✓ Logged out from %s\n", cfg.CRM.Integration)
	return nil
}
