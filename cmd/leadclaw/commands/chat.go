package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/agent"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/assistant"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// newChatCmd creates the `leadclaw chat` command for the admin console.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant as the business owner",
		Long: `Open an admin conversation with the assistant. The admin profile
can search contacts and query stored leads on top of the customer tools.
Send a single message as an argument, or run without arguments for an
interactive session.

Examples:
  leadclaw chat "who booked appointments this week?"
  leadclaw chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("model", "m", "", "override the configured LLM model")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.LLM.Model = model
	}

	logger := newLogger(cmd, cfg)
	slog.SetDefault(logger)
	assistant.ResolveSecrets(cfg, logger)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	a, err := assistant.New(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("wiring assistant: %w", err)
	}

	ctx := context.Background()
	var history []agent.Message

	if len(args) > 0 {
		_, err := sendAdminTurn(ctx, a, history, args[0])
		return err
	}

	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Admin chat. Ctrl+D or /quit to exit.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		history, err = sendAdminTurn(ctx, a, history, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// sendAdminTurn appends the user message, runs the admin profile and prints
// the reply. Returns the updated history including the assistant's answer.
func sendAdminTurn(ctx context.Context, a *assistant.Assistant, history []agent.Message, text string) ([]agent.Message, error) {
	history = append(history, agent.Message{Role: "user", Content: text})

	result := a.HandleEvent(ctx, assistant.AdminEvent{Messages: history})
	if !result.Success {
		return history, fmt.Errorf("%s", result.Message)
	}

	reply := ""
	if data, ok := result.Data.(map[string]any); ok {
		reply, _ = data["reply"].(string)
	}
	fmt.Printf("\nleadclaw> %s\n\n", reply)

	return append(history, agent.Message{Role: "assistant", Content: reply}), nil
}
