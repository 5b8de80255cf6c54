package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrPeterss/infosci-spark-client/internal/config"
	"github.com/MrPeterss/infosci-spark-client/internal/logutil"
	"github.com/MrPeterss/infosci-spark-client/internal/observability"
	"github.com/MrPeterss/infosci-spark-client/internal/terminal"
	"github.com/MrPeterss/infosci-spark-client/spark"
)

const shutdownTimeout = 5 * time.Second

// app carries what every subcommand needs once configuration is loaded
type app struct {
	v        *viper.Viper
	cfg      *config.Config
	logger   *slog.Logger
	shutdown observability.ShutdownFunc
}

func newApp() *app {
	return &app{v: viper.New()}
}

// execute runs the command tree and always flushes tracing afterwards,
// including when a subcommand fails.
func execute(ctx context.Context, cmd *cobra.Command, a *app) error {
	defer a.close(ctx)
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "spark-chat",
		Short:         "Chat with the Information Science Spark API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file path (default ./spark.yaml or ~/.spark/spark.yaml)")
	flags.String("api-key", "", "Spark API key (or SPARK_API_KEY)")
	flags.String("base-url", spark.DefaultBaseURL, "Spark API base URL")
	flags.Duration("timeout", spark.DefaultTimeout, "Timeout for non-streaming requests")
	flags.Bool("show-thinking", false, "Show the model's reasoning")
	flags.String("reasoning-level", "", "Reasoning level: low|medium|high (default: server default)")
	flags.String("system", "", "System prompt sent before the conversation")
	flags.String("log-level", "", "Logging level: debug|info|warn|error")
	flags.String("log-format", "", "Logging format: text|json")
	flags.String("otlp-endpoint", "", "Export traces over OTLP/HTTP to host:port")
	flags.String("history-path", "", "Conversation history file")
	flags.Int("max-history", 0, "Number of sessions kept in the history file")

	bindings := map[string]string{
		"api_key":         "api-key",
		"base_url":        "base-url",
		"timeout":         "timeout",
		"show_thinking":   "show-thinking",
		"reasoning_level": "reasoning-level",
		"system_prompt":   "system",
		"logging.level":   "log-level",
		"logging.format":  "log-format",
		"otlp_endpoint":   "otlp-endpoint",
		"history_path":    "history-path",
		"max_history":     "max-history",
	}
	for key, name := range bindings {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(newChatCmd(a), newAskCmd(a), newConfigCmd(a))
	return cmd
}

// init loads configuration and sets up logging and tracing
func (a *app) init(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logutil.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.shutdown, err = observability.Setup(ctx, cfg.OTLPEndpoint, "spark-chat")
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	return nil
}

// close flushes pending spans. It still runs after ctx is cancelled by a
// signal, bounded by shutdownTimeout.
func (a *app) close(ctx context.Context) {
	if a.shutdown == nil {
		return
	}
	shutdown := a.shutdown
	a.shutdown = nil

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		a.logger.Warn("trace shutdown failed", "error", err)
	}
}

// client validates the configuration and builds the Spark client
func (a *app) client() (*spark.Client, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return spark.New(spark.Config{
		APIKey:  a.cfg.APIKey,
		BaseURL: a.cfg.BaseURL,
		Timeout: a.cfg.Timeout,
		Logger:  a.logger,
	})
}

// interactive reports whether w is a terminal
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && terminal.IsTerminal(f)
}
