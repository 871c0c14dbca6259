package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/llmcouncil/pkg/config"
	"github.com/codeready-toolchain/llmcouncil/pkg/contextmgr"
	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/storage/jsonstore"
	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
)

// decodeJSON unmarshals a recorder's body, failing the test on error.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// assertHTTPError asserts err is an *echo.HTTPError with the given status.
func assertHTTPError(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	require.Equal(t, status, he.Code)
}

// fakeProvider answers deterministically keyed by model name, mirroring
// pkg/council's own test fake so orchestrator behavior under test matches
// what pkg/council itself verifies.
type fakeProvider struct {
	fail      map[string]bool
	responses map[string]string
}

func (f *fakeProvider) Complete(ctx context.Context, model string, messages []provider.Message, timeout time.Duration) (*provider.CompletionResult, error) {
	if f.fail[model] {
		return nil, nil
	}
	if r, ok := f.responses[model]; ok {
		return &provider.CompletionResult{Content: r}, nil
	}
	return &provider.CompletionResult{Content: "response from " + model}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, model string, messages []provider.Message, timeout time.Duration) streammux.Producer {
	return func(ctx context.Context) <-chan streammux.Chunk {
		out := make(chan streammux.Chunk, 3)
		go func() {
			defer close(out)
			out <- streammux.Chunk{Type: streammux.TypeStart}
			result, err := f.Complete(ctx, model, messages, timeout)
			if err != nil || result == nil {
				out <- streammux.Chunk{Type: streammux.TypeError, Message: "unavailable"}
				return
			}
			out <- streammux.Chunk{Type: streammux.TypeChunk, Content: result.Content}
			out <- streammux.Chunk{Type: streammux.TypeDone, Response: result.Content}
		}()
		return out
	}
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{"m1", "m2", "m3"}, nil
}

func rankingResponse(order ...string) string {
	text := "Evaluation text.\n\nFINAL RANKING:\n"
	for i, label := range order {
		text += string(rune('1'+i)) + ". " + label + "\n"
	}
	return text
}

// newTestServer builds a Server wired against a real jsonstore (under
// t.TempDir()), a real config.FileStore, and the given provider, with no
// background pool (nil Pool is a documented no-op for
// ScheduleBackgroundSummarization).
func newTestServer(t *testing.T, p provider.Provider) *Server {
	t.Helper()

	store, err := jsonstore.New(t.TempDir())
	require.NoError(t, err)

	orchestrator := &council.Orchestrator{Provider: p}
	locks := conversation.NewLockRegistry()
	contextMgr := &contextmgr.Manager{Store: store, Orchestrator: orchestrator, Locks: locks}

	configStore := config.NewFileStore(t.TempDir(), config.CouncilConfig{
		Provider:      "remote",
		CouncilModels: []string{"m1", "m2"},
		ChairmanModel: "m3",
	})

	return NewServer(config.DefaultConfig(), store, orchestrator, contextMgr, locks, configStore, nil, nil)
}
