package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemote_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hi"}},
			},
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "secret", srv.Client())
	result, err := r.Complete(context.Background(), "gpt", []Message{{Role: "user", Content: "hello"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Content)
}

func TestRemote_Complete_UnknownModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client())
	result, err := r.Complete(context.Background(), "missing", nil, time.Second)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRemote_Stream_PromotesToChunkSequence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": "full answer"}}},
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client())
	producer := r.Stream(context.Background(), "gpt", nil, time.Second)

	var types []string
	for c := range producer(context.Background()) {
		types = append(types, string(c.Type))
	}
	assert.Equal(t, []string{"start", "chunk", "done"}, types)
}

func TestRemote_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "model-a"}, {"id": "model-b"}},
		})
	}))
	defer srv.Close()

	r := NewRemote(srv.URL, "", srv.Client())
	models, err := r.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"model-a", "model-b"}, models)
}

func TestMatchesAlias(t *testing.T) {
	assert.True(t, MatchesAlias("llama3", "llama3:latest"))
	assert.True(t, MatchesAlias("llama3:latest", "llama3"))
	assert.True(t, MatchesAlias("llama3", "llama3"))
	assert.False(t, MatchesAlias("llama3", "mistral"))
}

func TestHybrid_RoutesByNamespace(t *testing.T) {
	ollama := &stubProvider{complete: &CompletionResult{Content: "from-ns"}}
	h := NewHybrid(nil, nil, map[string]Provider{"ollama": ollama})

	result, err := h.Complete(context.Background(), "ollama/llama3", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "from-ns", result.Content)
	assert.Equal(t, "llama3", ollama.lastModel)
}

func TestHybrid_BareNameTriesLocalThenRemote(t *testing.T) {
	local := &stubProvider{complete: nil}
	remote := &stubProvider{complete: &CompletionResult{Content: "from-remote"}}
	h := NewHybrid(local, remote, nil)

	result, err := h.Complete(context.Background(), "gpt", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "from-remote", result.Content)
}

type stubProvider struct {
	complete  *CompletionResult
	lastModel string
}

func (s *stubProvider) Complete(ctx context.Context, model string, messages []Message, timeout time.Duration) (*CompletionResult, error) {
	s.lastModel = model
	return s.complete, nil
}

func (s *stubProvider) Stream(ctx context.Context, model string, messages []Message, timeout time.Duration) streammux.Producer {
	return nil
}

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	return nil, nil
}
