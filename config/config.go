package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	AppName     = "exterior-stylist"
	EnvFileName = "config.env"
)

// Providers selectable via AGENT_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds process-level settings read from the environment.
type Config struct {
	ListenAddr     string
	Provider       string
	MaxUploadBytes int64
}

// LoadEnvFile loads environment variables from the config file in the
// user's config directory. Errors are ignored since the file may not
// exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() Config {
	cfg := Config{
		ListenAddr:     ":8080",
		Provider:       ProviderOpenAI,
		MaxUploadBytes: 16 << 20,
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if provider := os.Getenv("AGENT_PROVIDER"); provider != "" {
		cfg.Provider = provider
	}
	return cfg
}
