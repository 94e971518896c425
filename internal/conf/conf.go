package conf

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// Chatlog gateway configuration
	Chatlog ChatlogConfig

	// Webhook authentication
	Webhook WebhookConfig

	// Local storage paths
	Data DataConfig

	// Backfill scheduler configuration
	Backfill BackfillConfig

	// LLM summarizer configuration (optional)
	LLM LLMConfig

	// HTTP API port
	APIPort int

	// Capture tuning (loaded from YAML)
	Capture *CaptureConfig

	// Debug mode
	Debug bool
}

// ChatlogConfig contains gateway connection settings
type ChatlogConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// WebhookConfig contains webhook authentication settings. Token enables
// shared-secret header auth; Secret enables HMAC body signatures. At least
// one must be set.
type WebhookConfig struct {
	Token  string
	Secret string
}

// DataConfig contains local storage paths
type DataConfig struct {
	Dir        string // sqlite databases
	MemoryRoot string // bucket note layout
}

// BackfillConfig contains backfill scheduler settings
type BackfillConfig struct {
	IntervalMinutes int
}

// LLMConfig contains summarizer settings
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		homeDir, _ := os.UserHomeDir()
		dataDir = filepath.Join(homeDir, ".chatlog-memory")
	}

	memoryRoot := os.Getenv("MEMORY_ROOT")
	if memoryRoot == "" {
		memoryRoot = filepath.Join(dataDir, "memory")
	}

	captureConfig, _ := LoadCaptureConfig(os.Getenv("CAPTURE_CONFIG_PATH"))

	return &Config{
		Chatlog: ChatlogConfig{
			BaseURL:        os.Getenv("CHATLOG_BASE_URL"),
			TimeoutSeconds: envInt("CHATLOG_TIMEOUT_SECONDS", 20),
		},
		Webhook: WebhookConfig{
			Token:  os.Getenv("WEBHOOK_TOKEN"),
			Secret: os.Getenv("WEBHOOK_SECRET"),
		},
		Data: DataConfig{
			Dir:        dataDir,
			MemoryRoot: memoryRoot,
		},
		Backfill: BackfillConfig{
			IntervalMinutes: envInt("BACKFILL_INTERVAL_MINUTES", 30),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
			Model:   os.Getenv("LLM_MODEL"),
		},
		APIPort: envInt("API_PORT", 8787),
		Capture: captureConfig,
		Debug:   os.Getenv("DEBUG") == "true",
	}
}

func envInt(name string, def int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Chatlog.BaseURL == "" {
		return &ConfigError{Field: "CHATLOG_BASE_URL", Message: "required"}
	}
	if c.Webhook.Token == "" && c.Webhook.Secret == "" {
		return &ConfigError{Field: "WEBHOOK_TOKEN/WEBHOOK_SECRET", Message: "at least one is required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
