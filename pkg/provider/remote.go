// Package provider adapters. remote.go grounds the gateway adapter in
// original_source/backend/openrouter.py's query_model/list_models: a single
// JSON-over-HTTPS POST with Bearer auth, no true upstream streaming.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
)

// Remote is a Provider backed by an OpenRouter-shaped HTTP gateway: one
// chat-completions endpoint, Bearer API key, JSON request/response bodies.
type Remote struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewRemote constructs a Remote adapter. A nil HTTP client defaults to
// http.DefaultClient; callers needing per-request timeouts rely on the
// context passed to Complete/Stream instead (openrouter.py uses a fresh
// httpx.AsyncClient(timeout=...) per call — we thread that through ctx).
func NewRemote(baseURL, apiKey string, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey, HTTP: client}
}

type chatCompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete performs a single POST to /chat/completions, mirroring
// openrouter.py's query_model. A non-2xx response is treated as upstream
// failure; a 404 with an "unknown model" shaped body is treated as "model
// not known to this adapter" per the Provider Port contract.
func (r *Remote) Complete(ctx context.Context, model string, messages []Message, timeout time.Duration) (*CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(chatCompletionRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("remote: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w", model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote: %s: upstream status %d: %s", model, resp.StatusCode, string(raw))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("remote: %s: empty choices", model)
	}

	return &CompletionResult{
		Content:   parsed.Choices[0].Message.Content,
		Reasoning: parsed.Choices[0].Message.Reasoning,
	}, nil
}

// Stream promotes the non-streaming Complete call to start/chunk/done per
// the non-streaming-providers promotion rule — openrouter.py never
// streams, it falls back to a plain request for every call.
func (r *Remote) Stream(ctx context.Context, model string, messages []Message, timeout time.Duration) streammux.Producer {
	return func(ctx context.Context) <-chan streammux.Chunk {
		out := make(chan streammux.Chunk, 3)
		go func() {
			defer close(out)
			out <- streammux.Chunk{Type: streammux.TypeStart}

			result, err := r.Complete(ctx, model, messages, timeout)
			if err != nil {
				out <- streammux.Chunk{Type: streammux.TypeError, Message: err.Error()}
				return
			}
			if result == nil {
				out <- streammux.Chunk{Type: streammux.TypeError, Message: fmt.Sprintf("model %q not available", model)}
				return
			}

			out <- streammux.Chunk{Type: streammux.TypeChunk, Content: result.Content}
			out <- streammux.Chunk{Type: streammux.TypeDone, Response: result.Content}
		}()
		return out
	}
}

type modelsListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels mirrors openrouter.py's list_models: GET /models, extract the
// "id" field of each entry.
func (r *Remote) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote: list models: upstream status %d", resp.StatusCode)
	}

	var parsed modelsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("remote: decode models: %w", err)
	}

	ids := make([]string, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}
