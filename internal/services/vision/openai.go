package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/processor"
	"go.uber.org/zap"
)

const maxResponseBytes = 4 << 20

// maxMessageRunes bounds a non-JSON provider error body kept in a Failure.
const maxMessageRunes = 200

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey   string
	endpoint string
	model    string
	detail   string

	maxTokens   int
	temperature float64

	recommendationsMaxTokens   int
	recommendationsTemperature float64

	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg config.OpenAIConfig, analysis config.AnalysisConfig, logger *zap.Logger) *Client {
	return &Client{
		apiKey:                     cfg.APIKey,
		endpoint:                   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:                      cfg.Model,
		detail:                     cfg.ImageDetail,
		maxTokens:                  cfg.MaxTokens,
		temperature:                cfg.Temperature,
		recommendationsMaxTokens:   analysis.RecommendationsMaxTokens,
		recommendationsTemperature: analysis.RecommendationsTemperature,
		client:                     &http.Client{},
		logger:                     logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// AnalyzeImage sends the instruction and the encoded image in one user turn.
// Deadlines come from ctx.
func (c *Client) AnalyzeImage(ctx context.Context, req models.AnalysisRequest) (string, error) {
	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "user",
				Content: []any{
					TextContent{Type: "text", Text: req.Instruction()},
					ImageContent{
						Type: "image_url",
						ImageURL: ImageURL{
							URL:    processor.EncodeDataURL(req.MIMEType(), req.Image()),
							Detail: c.detail,
						},
					},
				},
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	return c.send(ctx, reqBody)
}

// Complete runs a text-only prompt with the recommendations settings.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatRequest{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.recommendationsMaxTokens,
		Temperature: c.recommendationsTemperature,
	}

	return c.send(ctx, reqBody)
}

func (c *Client) send(ctx context.Context, reqBody ChatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", ClassifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", ClassifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Provider returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("model", c.model),
		)
		return "", &Error{
			Kind:       models.KindProvider,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(body),
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", malformed("failed to parse response", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", malformed("no choices in response", nil)
	}

	text, err := contentText(chatResp.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", malformed("empty response content", nil)
	}

	return text, nil
}

// contentText accepts either a plain string or a list of text parts.
func contentText(content any) (string, error) {
	switch v := content.(type) {
	case string:
		return v, nil
	case []any:
		var sb strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String(), nil
	case nil:
		return "", malformed("empty response content", nil)
	default:
		return "", malformed(fmt.Sprintf("unexpected content type %T", content), nil)
	}
}

func providerMessage(body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if runes := []rune(msg); len(runes) > maxMessageRunes {
		msg = string(runes[:maxMessageRunes])
	}
	if msg == "" {
		msg = "provider returned an error"
	}
	return msg
}
