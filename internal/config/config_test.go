package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/llm"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATA_DIR", "DB_PATH", "LOG_LEVEL", "EXECUTOR", "SANDBOX_IMAGE", "SANDBOX_POOL_SIZE",
		"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "OPENAI_API_KEY", "OPENAI_MODEL",
		"OPENAI_BASE_URL", "LLM_TIMEOUT", "PM_EMAILS_FILE", "JWT_SECRET", "OPERATOR_PASSWORD_HASH", "SECURE_COOKIE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data/charts.db", cfg.DBPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ExecutorPlotscript, cfg.Executor)
	assert.Equal(t, llm.DefaultGeminiModel, cfg.LLM.Gemini.Model)
	assert.Equal(t, llm.DefaultOpenAIBaseURL, cfg.LLM.OpenAI.BaseURL)
	assert.Equal(t, llm.DefaultTimeout, cfg.LLM.Timeout)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", "/srv/usage")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EXECUTOR", "Docker")
	t.Setenv("SANDBOX_POOL_SIZE", "4")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("GEMINI_API_KEY", " secret ")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("OPERATOR_PASSWORD_HASH", "$2a$10$hash")
	t.Setenv("SECURE_COOKIE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/srv/usage/charts.db", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, ExecutorDocker, cfg.Executor)
	assert.Equal(t, 4, cfg.Sandbox.PoolSize)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "secret", cfg.LLM.Gemini.APIKey)
	assert.True(t, cfg.AuthEnabled())
	assert.True(t, cfg.SecureCookie)
	assert.Greater(t, cfg.WriteTimeout, cfg.LLM.Timeout)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "eighty"},
		{"LOG_LEVEL", "loud"},
		{"EXECUTOR", "wasm"},
		{"SANDBOX_POOL_SIZE", "-1"},
		{"LLM_TIMEOUT", "soon"},
		{"SECURE_COOKIE", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
