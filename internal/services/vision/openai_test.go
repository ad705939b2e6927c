package vision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/phambaophuc/upcycle-vision/internal/services/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

type part struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL    string `json:"url"`
		Detail string `json:"detail"`
	} `json:"image_url"`
}

func newTestClient(url string) *Client {
	return NewClient(
		config.OpenAIConfig{APIKey: "sk-test", BaseURL: url + "/", Model: "gpt-4o", MaxTokens: 1000, Temperature: 0.1, ImageDetail: "high"},
		config.AnalysisConfig{RecommendationsMaxTokens: 2000, RecommendationsTemperature: 0.8},
		zap.NewNop(),
	)
}

func chatReply(text string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": text}}},
	})
	return string(raw)
}

func TestAnalyzeImage_SendsInstructionAndImage(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0x01, 0x02, 0x03}
	var got capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(chatReply("A wooden dining chair.")))
	}))
	defer srv.Close()

	req := models.NewAnalysisRequest(models.ImageInput{Data: image, MIMEType: "image/jpeg"}, "describe it")
	text, err := newTestClient(srv.URL).AnalyzeImage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "A wooden dining chair.", text)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)

	var parts []part
	require.NoError(t, json.Unmarshal(got.Messages[0].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "describe it", parts[0].Text)
	assert.Equal(t, "high", parts[1].ImageURL.Detail)

	mime, decoded, err := processor.DecodeDataURL(parts[1].ImageURL.URL)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, image, decoded)
}

func TestComplete_UsesRecommendationSettings(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(chatReply("### DIY Creative Ideas\n1. Planter")))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Complete(context.Background(), "ideas please")
	require.NoError(t, err)
	assert.Contains(t, text, "Planter")
	assert.Equal(t, 2000, got.MaxTokens)
	assert.InDelta(t, 0.8, got.Temperature, 1e-9)

	var content string
	require.NoError(t, json.Unmarshal(got.Messages[0].Content, &content))
	assert.Equal(t, "ideas please", content)
}

func TestSend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      models.ErrorKind
		retryable bool
		message   string
	}{
		{name: "rate limited", status: 429, body: `{"error":{"message":"slow down"}}`, kind: models.KindProvider, retryable: true, message: "slow down"},
		{name: "server error", status: 503, body: "upstream unavailable", kind: models.KindProvider, retryable: true, message: "upstream unavailable"},
		{name: "bad request", status: 400, body: `{"error":{"message":"invalid image"}}`, kind: models.KindProvider, retryable: false, message: "invalid image"},
		{name: "not json", status: 200, body: "<html>", kind: models.KindMalformedResponse, retryable: true},
		{name: "no choices", status: 200, body: `{"choices":[]}`, kind: models.KindMalformedResponse, retryable: true},
		{name: "blank content", status: 200, body: chatReply("   "), kind: models.KindMalformedResponse, retryable: true},
		{name: "null content", status: 200, body: `{"choices":[{"message":{"content":null}}]}`, kind: models.KindMalformedResponse, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Complete(context.Background(), "x")
			require.Error(t, err)

			var verr *Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.kind, verr.Kind)
			assert.Equal(t, tt.retryable, verr.Retryable())
			if tt.message != "" {
				assert.Equal(t, tt.message, verr.Message)
				assert.Equal(t, tt.status, verr.StatusCode)
			}
		})
	}
}

func TestSend_ContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}]}}]}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", text)
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).Complete(ctx, "x")
	assert.Equal(t, models.KindTimeout, KindOf(err))
}

func TestSend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Complete(context.Background(), "x")
	assert.Equal(t, models.KindNetwork, KindOf(err))
}

func TestClassifyTransport(t *testing.T) {
	assert.Equal(t, models.KindTimeout, ClassifyTransport(context.DeadlineExceeded).Kind)
	assert.Equal(t, models.KindNetwork, ClassifyTransport(context.Canceled).Kind)
	assert.Equal(t, models.KindNetwork, ClassifyTransport(errors.New("connection reset")).Kind)

	typed := &Error{Kind: models.KindProvider, StatusCode: 500}
	assert.Same(t, typed, ClassifyTransport(typed))
	assert.Equal(t, models.KindNetwork, KindOf(errors.New("plain")))
}

func TestProviderMessage(t *testing.T) {
	assert.Equal(t, "quota exceeded", providerMessage([]byte(`{"error":{"message":"quota exceeded"}}`)))
	assert.Equal(t, "provider returned an error", providerMessage([]byte("   ")))

	long := providerMessage([]byte(strings.Repeat("é", 300)))
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(long))
}
