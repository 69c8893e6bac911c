package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/usage-dashboard/internal/prompt"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// openai calls /chat/completions with the instructions as the system
// message and the request as the user message.
func (c *Client) openai(ctx context.Context, bc BackendConfig, p prompt.Prompt) (string, error) {
	body := chatRequest{
		Model: bc.Model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
	}
	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + bc.APIKey}
	if err := c.postJSON(ctx, strings.TrimRight(bc.BaseURL, "/")+"/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
