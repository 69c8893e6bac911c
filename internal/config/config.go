// Package config reads process configuration from the environment. A .env
// file in the working directory, when present, is loaded first and never
// overrides variables that are already set.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/usage-dashboard/internal/executor/docker"
	"github.com/sakif/usage-dashboard/internal/llm"
)

// Executor engine names.
const (
	ExecutorPlotscript = "plotscript"
	ExecutorDocker     = "docker"
)

type Config struct {
	Port     int
	DataDir  string
	DBPath   string
	LogLevel slog.Level

	Executor string
	Sandbox  docker.Config

	LLM llm.Config

	// PMEmailsFile is a CSV with an "email" column used by the pm_only filter.
	PMEmailsFile string

	// Auth is enabled only when both are set.
	JWTSecret            string
	OperatorPasswordHash string
	// SecureCookie marks the session cookie Secure; set it behind HTTPS.
	SecureCookie bool

	WriteTimeout time.Duration
}

// AuthEnabled reports whether operator login is configured.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != "" && c.OperatorPasswordHash != ""
}

// Load reads the configuration. Malformed numeric or enum values are errors.
func Load() (Config, error) {
	_ = godotenv.Load()

	dataDir := getenv("DATA_DIR", "data")
	cfg := Config{
		DataDir:              dataDir,
		DBPath:               getenv("DB_PATH", filepath.Join(dataDir, "charts.db")),
		Executor:             strings.ToLower(getenv("EXECUTOR", ExecutorPlotscript)),
		Sandbox:              docker.DefaultConfig(),
		PMEmailsFile:         getenv("PM_EMAILS_FILE", ""),
		JWTSecret:            strings.TrimSpace(getenv("JWT_SECRET", "")),
		OperatorPasswordHash: strings.TrimSpace(getenv("OPERATOR_PASSWORD_HASH", "")),
		LLM: llm.Config{
			Gemini: llm.BackendConfig{
				APIKey:  strings.TrimSpace(getenv("GEMINI_API_KEY", "")),
				Model:   getenv("GEMINI_MODEL", llm.DefaultGeminiModel),
				BaseURL: getenv("GEMINI_BASE_URL", llm.DefaultGeminiBaseURL),
			},
			OpenAI: llm.BackendConfig{
				APIKey:  strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
				Model:   getenv("OPENAI_MODEL", llm.DefaultOpenAIModel),
				BaseURL: getenv("OPENAI_BASE_URL", llm.DefaultOpenAIBaseURL),
			},
		},
	}

	var err error
	if cfg.Port, err = getenvInt("PORT", 8080); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = parseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return Config{}, err
	}
	if cfg.Executor != ExecutorPlotscript && cfg.Executor != ExecutorDocker {
		return Config{}, fmt.Errorf("invalid EXECUTOR %q: must be %s or %s", cfg.Executor, ExecutorPlotscript, ExecutorDocker)
	}
	cfg.Sandbox.Image = getenv("SANDBOX_IMAGE", cfg.Sandbox.Image)
	if cfg.Sandbox.PoolSize, err = getenvInt("SANDBOX_POOL_SIZE", cfg.Sandbox.PoolSize); err != nil {
		return Config{}, err
	}
	if cfg.SecureCookie, err = getenvBool("SECURE_COOKIE", false); err != nil {
		return Config{}, err
	}
	if cfg.LLM.Timeout, err = getenvDuration("LLM_TIMEOUT", llm.DefaultTimeout); err != nil {
		return Config{}, err
	}
	// Generation plus execution must fit in one response.
	cfg.WriteTimeout = cfg.LLM.Timeout + cfg.Sandbox.Timeout + 15*time.Second

	return cfg, nil
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, value)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q", key, value)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, value)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
