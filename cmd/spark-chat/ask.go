package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrPeterss/infosci-spark-client/internal/terminal"
)

func newAskCmd(a *app) *cobra.Command {
	var noStream bool

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Ask a single question; reads the prompt from stdin when no args are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				text, err := terminal.NewInput(cmd.InOrStdin()).ReadAll()
				if err != nil {
					return fmt.Errorf("reading prompt: %w", err)
				}
				prompt = text
			}
			if prompt == "" {
				return errors.New("no prompt given")
			}
			return a.runAsk(cmd, prompt, !noStream)
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full reply instead of streaming it")
	return cmd
}

// runAsk writes the answer to stdout and, with --show-thinking, the
// reasoning to stderr so the answer stays pipeable.
func (a *app) runAsk(cmd *cobra.Command, prompt string, stream bool) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	messages := buildMessages(a.cfg.SystemPrompt, nil, prompt)
	opts := a.cfg.ChatOptions()

	if !stream {
		res, err := client.Chat(ctx, messages, opts)
		if err != nil {
			return err
		}
		if res.Reasoning != "" {
			fmt.Fprintln(errOut, res.Reasoning)
		}
		fmt.Fprintln(out, res.Content)
		return nil
	}

	s, err := client.ChatStream(ctx, messages, opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		if chunk.Reasoning != "" {
			fmt.Fprint(errOut, chunk.Reasoning)
		}
		fmt.Fprint(out, chunk.Content)
	}
	fmt.Fprintln(out)

	if n := s.Skipped(); n > 0 {
		a.logger.Warn("skipped malformed stream events", "count", n)
	}
	return nil
}
