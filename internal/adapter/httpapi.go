package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quorumhq/quorum/pkg/models"
)

// HTTPAdapter invokes a model backend over a chat-completion style HTTP API
// (the payload shape served by OpenAI-compatible backends such as Ollama,
// vLLM, and OpenRouter).
type HTTPAdapter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	backend string
	headers map[string]string
}

// HTTPConfig configures an HTTPAdapter.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:11434/v1".
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Backend names the backend for error messages and logging.
	Backend string
	// Headers are extra headers added to every request.
	Headers map[string]string
	// Client overrides the HTTP client. Nil uses a default with no
	// client-side timeout; deadlines come from the caller's context.
	Client *http.Client
}

// NewHTTPAdapter creates an HTTPAdapter.
func NewHTTPAdapter(cfg HTTPConfig) *HTTPAdapter {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPAdapter{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		backend: cfg.Backend,
		headers: cfg.Headers,
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke issues the chat-completion request and extracts the response text.
func (a *HTTPAdapter) Invoke(ctx context.Context, prompt string, opts InvokeOptions) models.Response {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	msgs := []chatMessage{}
	if pre := stancePreamble(opts.Stance); pre != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: pre})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:     opts.Model,
		MaxTokens: maxTokens,
		Messages:  msgs,
	})
	if err != nil {
		return failure(models.ErrorRejected, false, 0, "encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return failure(models.ErrorRejected, false, 0, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	for k, v := range a.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() != nil || isContextErr(err) {
			return ctxFailure(err, latency)
		}
		return failure(models.ErrorUnreachable, true, latency,
			"%s: %v", a.backend, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if ctx.Err() != nil {
			return ctxFailure(ctx.Err(), latency)
		}
		return failure(models.ErrorUnreachable, true, latency,
			"%s: read response: %v", a.backend, err)
	}

	if resp.StatusCode != http.StatusOK {
		class, transient := classifyStatus(resp.StatusCode)
		return failure(class, transient, latency,
			"%s returned %d: %s", a.backend, resp.StatusCode, tail(strings.TrimSpace(string(data)), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return failure(models.ErrorMalformedOutput, false, latency,
			"%s: unparseable response: %v", a.backend, err)
	}
	if parsed.Error != nil {
		return failure(models.ErrorRejected, false, latency,
			"%s: %s", a.backend, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return failure(models.ErrorMalformedOutput, false, latency,
			"%s returned no content", a.backend)
	}

	return success(strings.TrimSpace(parsed.Choices[0].Message.Content), latency)
}

// String describes the adapter for logging.
func (a *HTTPAdapter) String() string {
	return fmt.Sprintf("http(%s)", a.backend)
}

// Verify HTTPAdapter implements Adapter at compile time.
var _ Adapter = (*HTTPAdapter)(nil)
