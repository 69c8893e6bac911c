package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sakif/usage-dashboard/internal/prompt"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// gemini calls models/{model}:generateContent with the prompt as a single
// user message.
func (c *Client) gemini(ctx context.Context, bc BackendConfig, p prompt.Prompt) (string, error) {
	endpoint := strings.TrimRight(bc.BaseURL, "/") + "/models/" + url.PathEscape(bc.Model) + ":generateContent"
	body := geminiRequest{Contents: []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: p.Combined()}},
	}}}

	var resp geminiResponse
	if err := c.postJSON(ctx, endpoint, map[string]string{"x-goog-api-key": bc.APIKey}, body, &resp); err != nil {
		return "", err
	}
	if resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
