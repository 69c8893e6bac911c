package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/usage-dashboard/internal/apperror"
	"github.com/sakif/usage-dashboard/internal/prompt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testPrompt = prompt.Prompt{System: "rules", User: "plot models"}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "gemini", want: Gemini},
		{in: "Gemini 1.5 Flash", want: Gemini},
		{in: " OPENAI ", want: OpenAI},
		{in: "ChatGPT 4o", want: OpenAI},
		{in: "chatgpt", want: OpenAI},
		{in: "claude", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_Gemini(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"fig = "},{"text":"px.bar(df)"}]}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Gemini: BackendConfig{APIKey: "g-key", BaseURL: srv.URL}}, testLogger())
	text, err := c.Generate(context.Background(), Gemini, testPrompt)

	require.NoError(t, err)
	assert.Equal(t, "fig = px.bar(df)", text)
	assert.Equal(t, "/models/"+DefaultGeminiModel+":generateContent", gotPath)
	assert.Equal(t, "g-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, testPrompt.Combined(), gotBody.Contents[0].Parts[0].Text)
}

func TestGenerate_OpenAI(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"fig = px.line(df)"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{OpenAI: BackendConfig{APIKey: "o-key", Model: "gpt-test", BaseURL: srv.URL}}, testLogger())
	text, err := c.Generate(context.Background(), OpenAI, testPrompt)

	require.NoError(t, err)
	assert.Equal(t, "fig = px.line(df)", text)
	assert.Equal(t, "Bearer o-key", gotAuth)
	assert.Equal(t, "gpt-test", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "rules"}, gotBody.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "plot models"}, gotBody.Messages[1])
}

func TestGenerate_MissingKeyMakesNoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(Config{Gemini: BackendConfig{BaseURL: srv.URL}}, testLogger())
	_, err := c.Generate(context.Background(), Gemini, testPrompt)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrConfiguration)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY not found")
	assert.False(t, called)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http error with api message", status: http.StatusTooManyRequests, body: `{"error":{"message":"quota exceeded"}}`, wantMsg: "HTTP 429: quota exceeded"},
		{name: "http error with plain body", status: http.StatusBadGateway, body: "upstream down", wantMsg: "HTTP 502: upstream down"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantMsg: "no choices"},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`, wantMsg: "no code"},
		{name: "malformed json", status: http.StatusOK, body: `{`, wantMsg: "malformed response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{OpenAI: BackendConfig{APIKey: "k", BaseURL: srv.URL}}, testLogger())
			_, err := c.Generate(context.Background(), OpenAI, testPrompt)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrGeneration)
			assert.Contains(t, err.Error(), "OpenAI API")
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGenerate_GeminiBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Gemini: BackendConfig{APIKey: "k", BaseURL: srv.URL}}, testLogger())
	_, err := c.Generate(context.Background(), Gemini, testPrompt)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrGeneration)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerate_UnknownBackend(t *testing.T) {
	c := NewClient(Config{}, testLogger())
	_, err := c.Generate(context.Background(), Backend("claude"), testPrompt)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestGenerate_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{Gemini: BackendConfig{APIKey: "k", BaseURL: srv.URL}}, testLogger())
	_, err := c.Generate(ctx, Gemini, testPrompt)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBackends(t *testing.T) {
	c := NewClient(Config{OpenAI: BackendConfig{APIKey: "k"}}, testLogger())
	got := c.Backends()

	require.Len(t, got, 2)
	assert.Equal(t, BackendStatus{ID: Gemini, Label: "Gemini 1.5 Flash", Model: DefaultGeminiModel, Configured: false}, got[0])
	assert.Equal(t, BackendStatus{ID: OpenAI, Label: "ChatGPT 4o", Model: DefaultOpenAIModel, Configured: true}, got[1])
}
