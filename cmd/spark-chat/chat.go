package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrPeterss/infosci-spark-client/internal/history"
	"github.com/MrPeterss/infosci-spark-client/internal/terminal"
	"github.com/MrPeterss/infosci-spark-client/internal/ui"
	"github.com/MrPeterss/infosci-spark-client/spark"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd)
		},
	}
}

func (a *app) runChat(cmd *cobra.Command) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := 80
	if f, ok := out.(*os.File); ok {
		width, _ = terminal.Size(f)
	}
	display := ui.NewDisplay(out, ui.Options{
		Width:        width,
		ShowThinking: a.cfg.ShowThinking,
		Interactive:  interactive(out),
	})

	historyMgr := history.NewManager(a.cfg.HistoryPath, a.cfg.MaxHistorySize)
	if err := historyMgr.Load(); err != nil {
		display.PrintWarning(fmt.Sprintf("Failed to load history: %v", err))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	input := terminal.NewInput(cmd.InOrStdin())
	display.PrintWelcome(client.BaseURL())

	for {
		display.PrintPrompt()
		query, err := input.ReadLine()
		if err != nil {
			break
		}

		switch query {
		case "/exit", "/quit", "exit", "quit":
			display.PrintGoodbye()
			return nil
		case "/clear":
			historyMgr.NewSession()
			display.PrintWelcome(client.BaseURL())
			display.PrintSuccess("Started a new conversation")
			continue
		case "/history":
			display.PrintHistory(historyMgr.GetCurrentSession())
			continue
		}
		if strings.TrimSpace(query) == "" {
			continue
		}

		now := time.Now()
		display.PrintUserMessage(query, now)

		messages := buildMessages(a.cfg.SystemPrompt, historyMgr.GetRecentMessages(recentTurns), query)
		display.StartAssistantResponse()
		err = a.streamReply(ctx, client, messages, display)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			display.PrintError(err)
			continue
		}
		display.EndAssistantResponse()

		// Save both turns only after a successful reply
		if err := historyMgr.AddMessage(history.Message{Role: spark.RoleUser, Content: query, Timestamp: now}); err != nil {
			a.logger.Warn("saving history failed", "error", err)
		}
		if err := historyMgr.AddMessage(history.Message{
			Role:      spark.RoleAssistant,
			Content:   display.Answer(),
			Timestamp: time.Now(),
			Metadata: &history.Metadata{
				Reasoning:      display.Thinking(),
				ReasoningLevel: a.cfg.ReasoningLevel,
				Streamed:       true,
				Duration:       time.Since(now),
			},
		}); err != nil {
			a.logger.Warn("saving history failed", "error", err)
		}
	}

	display.PrintGoodbye()
	return nil
}

// streamReply streams one answer into the display
func (a *app) streamReply(ctx context.Context, client *spark.Client, messages []spark.Message, display *ui.Display) error {
	stream, err := client.ChatStream(ctx, messages, a.cfg.ChatOptions())
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		display.WriteThinking(chunk.Reasoning)
		display.WriteAnswer(chunk.Content)
	}
}
