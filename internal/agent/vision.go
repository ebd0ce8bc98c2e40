package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const visionPrompt = "Analyze this person's face for health indicators. Look for signs of stress, fatigue, emotional state, skin condition, and overall wellness. Provide a brief health assessment in 2-3 sentences. Focus on observable features like skin tone, eye clarity, facial tension, and expression."

const visionMaxTokens = 150

var ErrEmptyDescription = errors.New("vision API returned no description")

type VisionClient struct {
	httpClient *resty.Client
	apiURL     string
	model      string
	logger     *zap.Logger
}

// NewVisionClient builds a chat-completions client for frame descriptions.
// Calls are never retried.
func NewVisionClient(apiURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *VisionClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &VisionClient{
		httpClient: client,
		apiURL:     apiURL,
		model:      model,
		logger:     logger,
	}
}

type imageURL struct {
	URL string `json:"url"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe sends one frame and returns the model's short description.
func (c *VisionClient) Describe(ctx context.Context, imageDataURL string) (string, error) {
	reqBody := visionRequest{
		Model: c.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL}},
			},
		}},
		MaxTokens: visionMaxTokens,
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		Post(c.apiURL)
	if err != nil {
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("vision API error: %s - %s", resp.Status(), truncate(resp.String(), 200))
	}

	var out visionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to decode vision response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyDescription
	}

	c.logger.Debug("Vision description received", zap.Int("chars", len(out.Choices[0].Message.Content)))
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
