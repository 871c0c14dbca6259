package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
)

// generateEndpoints mirrors ollama.py's OLLAMA_GENERATE_ENDPOINTS: local
// runtimes expose generation under different paths across versions, so the
// adapter tries each in order and keeps the first one that accepts the
// request.
var generateEndpoints = []string{
	"/api/generate",
	"/v1/generate",
	"/generate",
}

// listEndpoints mirrors the candidates probed by ollama.py's list_models.
var listEndpoints = []string{
	"/api/models",
	"/models",
	"/v1/models",
}

// Local is a Provider for a locally-running model runtime (e.g. Ollama): it
// prefers the runtime's HTTP API and falls back to invoking its CLI binary
// as a subprocess when the HTTP surface is unreachable, per
// original_source/backend/ollama.py's query_model/_call_ollama_cli split.
type Local struct {
	BaseURL string
	CLIPath string
	HTTP    *http.Client
}

// NewLocal constructs a Local adapter. cliPath may be empty, in which case
// the CLI fallback is skipped entirely and HTTP failure is terminal.
func NewLocal(baseURL, cliPath string, client *http.Client) *Local {
	if client == nil {
		client = http.DefaultClient
	}
	return &Local{BaseURL: strings.TrimRight(baseURL, "/"), CLIPath: cliPath, HTTP: client}
}

func flattenPrompt(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		role := m.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "[%s] %s", role, m.Content)
	}
	return b.String()
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Result   string `json:"result"`
	Response string `json:"response"`
}

// callHTTP tries each candidate endpoint in turn, returning the first
// successful response body's extracted text. Returns ("", false) if none of
// the endpoints accepted the request, never an error — HTTP failure here is
// expected and handled by falling back to the CLI.
func (l *Local) callHTTP(ctx context.Context, model, prompt string) (string, bool) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", false
	}

	for _, endpoint := range generateEndpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := l.HTTP.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			continue
		}

		var parsed generateResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			continue
		}
		if parsed.Result != "" {
			return parsed.Result, true
		}
		if parsed.Response != "" {
			return parsed.Response, true
		}
	}
	return "", false
}

// cliGenerateCmds mirrors ollama.py's OLLAMA_CLI_GENERATE_CMDS: try
// subcommands in order since not every CLI version supports every verb.
var cliGenerateCmds = []string{"run", "generate"}

// callCLI shells out to the runtime's CLI binary as a best-effort fallback
// when the HTTP surface is unreachable.
func (l *Local) callCLI(ctx context.Context, model, prompt string) (string, bool) {
	if l.CLIPath == "" {
		return "", false
	}

	for _, subcmd := range cliGenerateCmds {
		cmd := exec.CommandContext(ctx, l.CLIPath, subcmd, model, prompt)
		out, err := cmd.Output()
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			return text, true
		}
	}
	return "", false
}

// Complete prefers the HTTP API and falls back to the CLI, matching
// query_model's OLLAMA_USE_CLI=false path in ollama.py.
func (l *Local) Complete(ctx context.Context, model string, messages []Message, timeout time.Duration) (*CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := flattenPrompt(messages)

	if content, ok := l.callHTTP(ctx, model, prompt); ok {
		return &CompletionResult{Content: content}, nil
	}
	if content, ok := l.callCLI(ctx, model, prompt); ok {
		return &CompletionResult{Content: content}, nil
	}
	return nil, fmt.Errorf("local: %s: unreachable over HTTP and CLI", model)
}

// Stream promotes Complete to start/chunk/done; the local runtime's HTTP
// surface is probed the same generate-then-fallback way whether or not the
// caller wants incremental output, since ollama.py's own streaming path
// (query_model(stream=True)) is only reachable through its dedicated
// generator, not the shared query_model used by the council.
func (l *Local) Stream(ctx context.Context, model string, messages []Message, timeout time.Duration) streammux.Producer {
	return func(ctx context.Context) <-chan streammux.Chunk {
		out := make(chan streammux.Chunk, 3)
		go func() {
			defer close(out)
			out <- streammux.Chunk{Type: streammux.TypeStart}

			result, err := l.Complete(ctx, model, messages, timeout)
			if err != nil {
				out <- streammux.Chunk{Type: streammux.TypeError, Message: err.Error()}
				return
			}
			out <- streammux.Chunk{Type: streammux.TypeChunk, Content: result.Content}
			out <- streammux.Chunk{Type: streammux.TypeDone, Response: result.Content}
		}()
		return out
	}
}

type localModelsResponse struct {
	Models []json.RawMessage `json:"models"`
}

// ListModels probes the HTTP API's model-listing endpoints, then falls back
// to `<cli> list`, mirroring ollama.py's list_models. Returned names are
// deduplicated in first-seen order.
func (l *Local) ListModels(ctx context.Context) ([]string, error) {
	for _, endpoint := range listEndpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL+endpoint, nil)
		if err != nil {
			continue
		}
		resp, err := l.HTTP.Do(req)
		if err != nil {
			continue
		}
		names, ok := parseModelList(resp)
		resp.Body.Close()
		if ok {
			return dedupe(names), nil
		}
	}

	if l.CLIPath == "" {
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, l.CLIPath, "list").Output()
	if err != nil {
		return nil, nil
	}
	return dedupe(parseCLIModelList(string(out))), nil
}

func parseModelList(resp *http.Response) ([]string, bool) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}
	var listForm []struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listForm); err == nil {
		names := make([]string, 0, len(listForm))
		for _, m := range listForm {
			if n := firstNonEmpty(m.Name, m.ID); n != "" {
				names = append(names, n)
			}
		}
		if len(names) > 0 {
			return names, true
		}
	}
	return nil, false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseCLIModelList parses `ollama list`-shaped tabular CLI output: a header
// row followed by one model name per line in the first column.
func parseCLIModelList(output string) []string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var names []string
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// MatchesAlias reports whether requested names candidate under the
// "<name>:latest" alias rule used by the orchestrator's membership filter:
// a bare model name matches a locally-listed "name:latest", and vice versa.
func MatchesAlias(requested, listed string) bool {
	if requested == listed {
		return true
	}
	return requested+":latest" == listed || listed+":latest" == requested
}
