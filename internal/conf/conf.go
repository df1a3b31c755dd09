package conf

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported gateway adapters
const (
	GatewayLoopback = "loopback"
	GatewayFeishu   = "feishu"
	GatewayTelegram = "telegram"
)

// Config is the daemon configuration, read from the environment
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":5000"`
	DBPath   string `envconfig:"DB_PATH" default:"data/botdeck.db"`
	Gateway  string `envconfig:"GATEWAY" default:"loopback"`

	// RedisURL, when set, moves cooldowns into Redis so several
	// daemons share them
	RedisURL    string `envconfig:"REDIS_URL"`
	RedisPrefix string `envconfig:"REDIS_PREFIX" default:"botdeck:cooldown:"`

	OpenAIKey       string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel     string `envconfig:"OPENAI_MODEL"`
	OpenAIMaxTokens int    `envconfig:"OPENAI_MAX_TOKENS" default:"500"`

	ScriptsDir string `envconfig:"SCRIPTS_DIR" default:"scripts"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	StatsInterval time.Duration `envconfig:"STATS_INTERVAL" default:"10s"`
	SettleDelay   time.Duration `envconfig:"RESTART_SETTLE_DELAY" default:"2s"`

	// ResumeSession restarts the bot from the stored session on boot
	ResumeSession bool `envconfig:"RESUME_SESSION" default:"false"`
}

// Load reads .env files (when present) and then the environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Load never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Gateway {
	case GatewayLoopback, GatewayFeishu, GatewayTelegram:
	default:
		return &ConfigError{Field: "GATEWAY", Message: fmt.Sprintf("unknown gateway %q", c.Gateway)}
	}
	if c.HTTPAddr == "" {
		return &ConfigError{Field: "HTTP_ADDR", Message: "required"}
	}
	if c.DBPath == "" {
		return &ConfigError{Field: "DB_PATH", Message: "required"}
	}
	if c.SweepInterval <= 0 {
		return &ConfigError{Field: "SWEEP_INTERVAL", Message: "must be positive"}
	}
	if c.StatsInterval <= 0 {
		return &ConfigError{Field: "STATS_INTERVAL", Message: "must be positive"}
	}
	return nil
}

// AskEnabled reports whether the ask command can be registered
func (c *Config) AskEnabled() bool {
	return c.OpenAIKey != ""
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// MCPConfig configures the botctl-mcp server
type MCPConfig struct {
	APIURL string `envconfig:"BOTD_API_URL" default:"http://localhost:5000"`
}

// LoadMCP reads the MCP server configuration
func LoadMCP() (*MCPConfig, error) {
	_ = godotenv.Load()
	var cfg MCPConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}
