// Package llm calls the text-generation backends that turn a chart prompt
// into code. Each call is a single attempt; failures are returned to the
// caller with the backend's detail.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/prompt"
)

// Backend names a code generation backend.
type Backend string

const (
	Gemini Backend = "gemini"
	OpenAI Backend = "openai"
)

const (
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultOpenAIModel   = "gpt-4o"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultTimeout       = 60 * time.Second

	maxResponseBytes = 4 << 20
)

type backendInfo struct {
	label  string // shown to the operator
	vendor string // used in error messages
	keyEnv string
}

var backends = map[Backend]backendInfo{
	Gemini: {label: "Gemini 1.5 Flash", vendor: "Gemini", keyEnv: "GEMINI_API_KEY"},
	OpenAI: {label: "ChatGPT 4o", vendor: "OpenAI", keyEnv: "OPENAI_API_KEY"},
}

// ParseBackend accepts a backend id or its display label, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for b, info := range backends {
		if s == string(b) || s == strings.ToLower(info.label) || s == strings.ToLower(info.vendor) {
			return b, nil
		}
	}
	if s == "chatgpt" {
		return OpenAI, nil
	}
	return "", apperror.ValidationFailed("backend",
		fmt.Sprintf("invalid backend %q: choose gemini or openai", s))
}

// Label is the display name of b.
func (b Backend) Label() string { return backends[b].label }

// BackendConfig holds one backend's credential and endpoint.
type BackendConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type Config struct {
	Gemini  BackendConfig
	OpenAI  BackendConfig
	Timeout time.Duration
}

// BackendStatus describes a backend for selection menus.
type BackendStatus struct {
	ID         Backend `json:"id"`
	Label      string  `json:"label"`
	Model      string  `json:"model"`
	Configured bool    `json:"configured"`
}

// Client sends prompts to the configured backends.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultGeminiModel
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = DefaultOpenAIModel
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Backends lists the available backends in display order.
func (c *Client) Backends() []BackendStatus {
	return []BackendStatus{
		{ID: Gemini, Label: Gemini.Label(), Model: c.cfg.Gemini.Model, Configured: c.cfg.Gemini.APIKey != ""},
		{ID: OpenAI, Label: OpenAI.Label(), Model: c.cfg.OpenAI.Model, Configured: c.cfg.OpenAI.APIKey != ""},
	}
}

// Generate returns the raw code text produced by backend for p. A missing
// credential fails before any request is made.
func (c *Client) Generate(ctx context.Context, backend Backend, p prompt.Prompt) (string, error) {
	info, ok := backends[backend]
	if !ok {
		return "", apperror.ValidationFailed("backend",
			fmt.Sprintf("invalid backend %q: choose gemini or openai", backend))
	}
	bc := c.backendConfig(backend)
	if bc.APIKey == "" {
		return "", apperror.Configuration(info.keyEnv,
			fmt.Sprintf("%s not found. Please set it in your .env file.", info.keyEnv))
	}

	start := time.Now()
	var text string
	var err error
	switch backend {
	case Gemini:
		text, err = c.gemini(ctx, bc, p)
	case OpenAI:
		text, err = c.openai(ctx, bc, p)
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("the response contained no code")
	}
	if err != nil {
		c.logger.Error("code generation failed",
			slog.String("backend", string(backend)),
			slog.String("error", err.Error()),
		)
		return "", apperror.Generation(info.vendor, err)
	}

	c.logger.Info("code generated",
		slog.String("backend", string(backend)),
		slog.String("model", bc.Model),
		slog.Int("chars", len(text)),
		slog.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func (c *Client) backendConfig(b Backend) BackendConfig {
	if b == Gemini {
		return c.cfg.Gemini
	}
	return c.cfg.OpenAI
}

// postJSON sends body and decodes a 2xx response into out. Non-2xx
// responses become errors carrying the backend's own message when present.
func (c *Client) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}
