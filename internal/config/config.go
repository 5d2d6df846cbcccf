package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Working directory for rendered tfvars files
	WorkDir string `mapstructure:"work-dir"`

	// Cloud provider configuration
	CloudProvider string `mapstructure:"cloud-provider"`
	AWSRegion     string `mapstructure:"aws-region"`

	// Requirement extraction (OpenAI-compatible endpoint)
	OpenAIAPIKey  string        `mapstructure:"openai-api-key"`
	OpenAIBaseURL string        `mapstructure:"openai-base-url"`
	OpenAIModel   string        `mapstructure:"openai-model"`
	LLMTimeout    time.Duration `mapstructure:"llm-timeout"`

	// Infra-as-code repository
	GitHubToken string        `mapstructure:"github-token"`
	RepoOwner   string        `mapstructure:"repo-owner"`
	RepoName    string        `mapstructure:"repo-name"`
	BaseBranch  string        `mapstructure:"base-branch"`
	GitTimeout  time.Duration `mapstructure:"git-timeout"`

	// Delivery callbacks and events
	APIToken        string `mapstructure:"api-token"`
	EventWebhookURL string `mapstructure:"event-webhook-url"`

	// Observability
	MetricsAddr string `mapstructure:"metrics-addr"`

	// Optional policy matrix override (YAML)
	PolicyFile string `mapstructure:"policy-file"`

	// FSM configuration
	FSMMaxRetries int `mapstructure:"fsm-max-retries"`

	// Reconciliation sweep for stuck pending requests
	SweepAge      time.Duration `mapstructure:"sweep-age"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("sqlite-path", ".artifacts/conversacloud.db")
	viper.SetDefault("fsm-db-path", ".artifacts/fsm.db")
	viper.SetDefault("work-dir", "/tmp/conversacloud")
	viper.SetDefault("cloud-provider", "aws")
	viper.SetDefault("aws-region", "us-east-1")
	viper.SetDefault("openai-base-url", "https://api.openai.com/v1")
	viper.SetDefault("openai-model", "gpt-4o-mini")
	viper.SetDefault("llm-timeout", 10*time.Second)
	viper.SetDefault("base-branch", "main")
	viper.SetDefault("git-timeout", 2*time.Minute)
	viper.SetDefault("fsm-max-retries", 5)
	viper.SetDefault("sweep-age", 10*time.Minute)
	viper.SetDefault("sweep-interval", time.Minute)

	// Environment variables (will be CONVERSACLOUD_SQLITE_PATH, etc.)
	viper.SetEnvPrefix("CONVERSACLOUD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.conversacloud")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	// Unmarshal into config struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.WorkDir == "" {
		return fmt.Errorf("work-dir cannot be empty")
	}
	if c.CloudProvider == "" {
		return fmt.Errorf("cloud-provider cannot be empty")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("llm-timeout must be positive")
	}
	if c.GitTimeout <= 0 {
		return fmt.Errorf("git-timeout must be positive")
	}
	if c.FSMMaxRetries < 0 {
		return fmt.Errorf("fsm-max-retries must be non-negative")
	}
	if c.SweepAge <= 0 {
		return fmt.Errorf("sweep-age must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep-interval must be positive")
	}
	return nil
}
