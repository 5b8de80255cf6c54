package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MrPeterss/infosci-spark-client/spark"
)

// EnvPrefix is prepended to every environment variable, e.g. SPARK_API_KEY
const EnvPrefix = "SPARK"

// Config holds all application configuration
type Config struct {
	// Spark API settings
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ShowThinking   bool          `mapstructure:"show_thinking" yaml:"show_thinking"`
	ReasoningLevel string        `mapstructure:"reasoning_level" yaml:"reasoning_level"`
	SystemPrompt   string        `mapstructure:"system_prompt" yaml:"system_prompt"`

	// History settings
	HistoryPath    string `mapstructure:"history_path" yaml:"history_path"`
	MaxHistorySize int    `mapstructure:"max_history" yaml:"max_history"`

	Logging      Logging `mapstructure:"logging" yaml:"logging"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// Logging configures the slog handler
type Logging struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		BaseURL:        spark.DefaultBaseURL,
		Timeout:        spark.DefaultTimeout,
		SystemPrompt:   "You are a helpful AI assistant.",
		HistoryPath:    expandHome("~/.spark/history.json"),
		MaxHistorySize: 10,
		Logging: Logging{
			Level:  "warn",
			Format: "text",
		},
	}
}

// SetDefaults registers the defaults of NewConfig on v
func SetDefaults(v *viper.Viper) {
	d := NewConfig()
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("show_thinking", d.ShowThinking)
	v.SetDefault("reasoning_level", d.ReasoningLevel)
	v.SetDefault("system_prompt", d.SystemPrompt)
	v.SetDefault("history_path", d.HistoryPath)
	v.SetDefault("max_history", d.MaxHistorySize)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("otlp_endpoint", d.OTLPEndpoint)
}

// Load reads configuration from, in increasing precedence: defaults, the
// config file, a .env file, SPARK_* environment variables, and any flags
// already bound on v. A missing config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("spark")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(expandHome("~/.spark"))
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := NewConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.HistoryPath = expandHome(cfg.HistoryPath)
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api key cannot be empty (set %s_API_KEY or --api-key)", EnvPrefix)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ReasoningLevel != "" && !spark.ReasoningLevel(c.ReasoningLevel).Valid() {
		return fmt.Errorf("reasoning level must be one of low, medium, high; got %q", c.ReasoningLevel)
	}
	if c.MaxHistorySize < 1 {
		return fmt.Errorf("max history must be at least 1")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// ChatOptions returns the per-call options the configuration asks for
func (c *Config) ChatOptions() spark.ChatOptions {
	return spark.ChatOptions{
		ShowThinking:   c.ShowThinking,
		ReasoningLevel: spark.ReasoningLevel(c.ReasoningLevel),
	}
}

// YAML renders the configuration with the API key masked
func (c *Config) YAML() (string, error) {
	masked := *c
	masked.APIKey = maskKey(c.APIKey)
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("marshalling config: %w", err)
	}
	return string(out), nil
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		return filepath.Join(getHomeDir(), path[1:])
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return "."
}
