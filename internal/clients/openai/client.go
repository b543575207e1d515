package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verityops/compliance-backend/internal/platform/apperr"
	"github.com/verityops/compliance-backend/internal/platform/httpx"
	"github.com/verityops/compliance-backend/internal/platform/logger"
)

// GenerateOptions controls a single completion call. Zero values fall back
// to the request defaults (temperature 0.1, 2000 output tokens).
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Client is the completion/embedding API surface the pipeline depends on.
type Client interface {
	// Embed returns one vector per input, index-aligned with inputs.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// GenerateText runs a chat completion with a system instruction and a
	// user prompt and returns the raw text content.
	GenerateText(ctx context.Context, system, user string, opts GenerateOptions) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	retry      httpx.RetryPolicy
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_CHAT_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}

	embed := strings.TrimSpace(os.Getenv("OPENAI_EMBEDDING_MODEL"))
	if embed == "" {
		embed = "text-embedding-3-small"
	}

	timeoutSec := 120
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("client", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		embedModel: embed,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		retry:      httpx.DefaultRetryPolicy(),
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// RetryAfterHint surfaces the server's Retry-After header to the retry
// policy, which prefers it over exponential backoff.
func (e *openAIHTTPError) RetryAfterHint() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

func (c *client) doOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &openAIHTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: httpx.RetryAfterDuration(resp, 0, 0),
		}
	}
	return raw, nil
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	return c.retry.Do(ctx, httpx.IsRetryableError, func(attempt int) error {
		raw, err := c.doOnce(ctx, path, body)
		if err != nil {
			if httpx.IsRetryableError(err) {
				c.log.Warn("OpenAI request retrying",
					"path", path,
					"attempt", attempt+1,
					"error", err.Error(),
				)
			}
			return err
		}
		if out == nil {
			return nil
		}
		if uErr := json.Unmarshal(raw, out); uErr != nil {
			return fmt.Errorf("openai decode error: %w", uErr)
		}
		return nil
	})
}

// -------------------- Embeddings --------------------

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "/v1/embeddings", embeddingsRequest{Model: c.embedModel, Input: clean}, &resp); err != nil {
		return nil, &apperr.EmbeddingError{Msg: "embeddings request failed", Err: err}
	}

	if len(resp.Data) != len(clean) {
		return nil, &apperr.EmbeddingError{
			Msg: fmt.Sprintf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(clean)),
		}
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &apperr.EmbeddingError{Msg: fmt.Sprintf("embedding index %d out of range", d.Index)}
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// -------------------- Chat completions --------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateText(ctx context.Context, system, user string, opts GenerateOptions) (string, error) {
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", &apperr.CompletionError{Msg: "chat completion failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.CompletionError{Msg: "chat completion returned no choices"}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
