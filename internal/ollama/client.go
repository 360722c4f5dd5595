// Package ollama talks to a local Ollama server's generate and tags endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "http://localhost:11434"

	generatePath     = "/api/generate"
	tagsPath         = "/api/tags"
	maxBodyBytes     = 16 << 20
	maxErrorBodySize = 512
)

var ErrMalformedResponse = errors.New("malformed response")

// FallbackModels is offered when the server cannot list its models.
func FallbackModels() []string {
	return []string{"llama3.2:latest", "llama3.2:1b", "llama3.2:3b"}
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New builds a client. A zero timeout leaves deadlines to the caller's context.
func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Generate runs a completion. Streaming responses are folded from their
// newline-delimited fragments.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+generatePath,
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer c.closeBody(ctx, resp, "Generate")

	if resp.StatusCode != http.StatusOK {
		return "", unexpectedStatus(resp)
	}

	if req.Stream {
		text, collectErr := Collect(Fragments(resp.Body))
		if collectErr != nil {
			return "", fmt.Errorf("read stream: %w", collectErr)
		}

		return text, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return parseGenerateBody(body)
}

// ListModels returns the names of locally available models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer c.closeBody(ctx, resp, "ListModels")

	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	var models []string
	for _, name := range gjson.GetBytes(body, "models.#.name").Array() {
		if n := strings.TrimSpace(name.String()); n != "" {
			models = append(models, n)
		}
	}

	return models, nil
}

func (c *Client) closeBody(ctx context.Context, resp *http.Response, operation string) {
	if err := resp.Body.Close(); err != nil {
		c.log.ErrorContext(ctx, "Failed to close response body",
			"error", err,
			"baseURL", c.baseURL,
			"operation", operation)
	}
}

func parseGenerateBody(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrMalformedResponse
	}

	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return "", fmt.Errorf("server error: %s", msg)
	}

	return gjson.GetBytes(body, "response").String(), nil
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return fmt.Errorf("do request: unexpected status: %d: %s", resp.StatusCode, msg)
	}

	return fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
}
