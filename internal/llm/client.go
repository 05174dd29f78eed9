// Package llm is the model-invocation boundary: every generator, the entry
// resolver's classifier fallback, and starter-scenario synthesis go
// through a Client rather than talking HTTP directly. Grounded on
// the teacher's internal/platform/openai client, trimmed to the two calls
// this system actually needs (GenerateJSON / GenerateText) and its
// exponential-backoff retry loop.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riverglen/coursecraft/internal/apierr"
	"github.com/riverglen/coursecraft/internal/logger"
)

// Client is the model boundary used throughout the orchestrator.
type Client interface {
	// GenerateJSON asks the model to return an object satisfying schema,
	// using json_schema structured outputs.
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	// GenerateText asks the model for unstructured text.
	GenerateText(ctx context.Context, system, user string) (string, error)
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	Timeout    time.Duration
}

func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:     strings.TrimSpace(os.Getenv("COURSECRAFT_LLM_API_KEY")),
		BaseURL:    strings.TrimSpace(os.Getenv("COURSECRAFT_LLM_BASE_URL")),
		Model:      strings.TrimSpace(os.Getenv("COURSECRAFT_LLM_MODEL")),
		MaxRetries: 3,
		Timeout:    60 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5.2"
	}
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("COURSECRAFT_LLM_MAX_RETRIES"))); err == nil && n >= 0 {
		cfg.MaxRetries = n
	}
	return cfg
}

type client struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

// New builds a Client from cfg. Returns an error wrapping
// apierr.ErrLMConfigMissing when no API key is configured, per spec.md's
// "LM unavailable" edge case.
func New(cfg Config, log *logger.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apierr.LMConfigMissing(errors.New("COURSECRAFT_LLM_API_KEY not set"))
	}
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

type responsesRequest struct {
	Model string `json:"model"`
	Input []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"input"`
	Text struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text"`
}

type responsesResponse struct {
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Refusal string `json:"refusal"`
}

func extractOutputText(resp responsesResponse) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" || c.Type == "text" {
				sb.WriteString(c.Text)
			}
		}
	}
	return sb.String()
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" || schema == nil {
		return nil, apierr.LMInvocation(errors.New("schemaName and schema are required"))
	}
	req := newRequest(c.cfg.Model, system, user)
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, "/v1/responses", req, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, apierr.LMInvocation(fmt.Errorf("model refused: %s", resp.Refusal))
	}
	text := strings.TrimSpace(extractOutputText(resp))
	if text == "" {
		return nil, apierr.LMInvocation(errors.New("empty model response"))
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, apierr.LMInvocation(fmt.Errorf("invalid model JSON: %w", err))
	}
	return obj, nil
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := newRequest(c.cfg.Model, system, user)

	var resp responsesResponse
	if err := c.do(ctx, "/v1/responses", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(extractOutputText(resp)), nil
}

func newRequest(model, system, user string) *responsesRequest {
	req := &responsesRequest{Model: model}
	req.Input = []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return req
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	url := c.cfg.BaseURL + path
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return apierr.LMInvocation(fmt.Errorf("encode request: %w", err))
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return apierr.LMInvocation(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			if !retryable(0, err) || attempt == c.cfg.MaxRetries {
				return apierr.LMInvocation(fmt.Errorf("request failed: %w", err))
			}
			c.sleep(attempt, backoff)
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt == c.cfg.MaxRetries {
				return apierr.LMInvocation(fmt.Errorf("read response: %w", readErr))
			}
			c.sleep(attempt, backoff)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return apierr.LMInvocation(fmt.Errorf("decode response: %w; body=%s", err, truncate(raw, 512)))
			}
			return nil
		}

		lastErr = fmt.Errorf("llm http %d: %s", resp.StatusCode, truncate(raw, 512))
		if !retryable(resp.StatusCode, nil) || attempt == c.cfg.MaxRetries {
			return apierr.LMInvocation(lastErr)
		}
		if c.log != nil {
			c.log.Warn("llm request retrying", "attempt", attempt+1, "max_retries", c.cfg.MaxRetries, "status", resp.StatusCode)
		}
		c.sleep(attempt, backoff)
		backoff *= 2
	}
	return apierr.LMInvocation(fmt.Errorf("exhausted retries: %w", lastErr))
}

func (c *client) sleep(attempt int, base time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(base)))
	time.Sleep(base + jitter)
}

func retryable(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
