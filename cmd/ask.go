package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/easydom/hellosure/internal/app"
	"github.com/easydom/hellosure/internal/chat"
	"github.com/easydom/hellosure/internal/config"
	"github.com/easydom/hellosure/internal/log"
)

// askWrapWidth is the terminal rendering width for answers.
const askWrapWidth = 100

var askCmd = &cobra.Command{
	Use:   "ask [domanda]",
	Short: "Ask the assistant a one-shot question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, question string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Warnings only: the answer is the output.
	logger := log.New(log.Config{Level: slog.LevelWarn, JSON: cfg.LogJSON})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	req := &chat.Request{Messages: []chat.Message{{Role: chat.RoleUser, Content: question}}}

	var answer strings.Builder
	for ev, err := range a.Orchestrator.Chat(ctx, req) {
		if err != nil {
			return fmt.Errorf("running conversation: %w", err)
		}
		answer.WriteString(ev.ContentDelta)
	}

	cmd.Println(renderMarkdown(answer.String()))
	return nil
}

// renderMarkdown pretty-prints the answer for the terminal, falling back to
// the raw text when the renderer is unavailable.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(askWrapWidth),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
