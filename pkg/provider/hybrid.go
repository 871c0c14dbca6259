package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
)

// Hybrid dispatches a model ID between a remote gateway and a local runtime
// adapter: a model ID of the form "<namespace>/<name>"
// is routed by namespace to a registered backend, and a bare name (no slash)
// is tried against Local first, falling back to Remote. This gives the
// council a single Provider over a mixed fleet without requiring every
// caller to know which backend serves which model.
type Hybrid struct {
	Namespaces map[string]Provider
	Local      Provider
	Remote     Provider
}

// NewHybrid constructs a Hybrid adapter. Either of local/remote may be nil
// if that backend is not configured.
func NewHybrid(local, remote Provider, namespaces map[string]Provider) *Hybrid {
	return &Hybrid{Namespaces: namespaces, Local: local, Remote: remote}
}

// resolve splits a model ID on its first "/" and returns the backend and the
// unqualified model name to send upstream. A bare name with no namespace
// resolves to (nil, name) and is tried against Local then Remote by the
// caller.
func (h *Hybrid) resolve(model string) (Provider, string) {
	ns, rest, ok := strings.Cut(model, "/")
	if !ok {
		return nil, model
	}
	if p, ok := h.Namespaces[ns]; ok {
		return p, rest
	}
	return nil, model
}

func (h *Hybrid) Complete(ctx context.Context, model string, messages []Message, timeout time.Duration) (*CompletionResult, error) {
	if p, name := h.resolve(model); p != nil {
		return p.Complete(ctx, name, messages, timeout)
	}

	if h.Local != nil {
		result, err := h.Local.Complete(ctx, model, messages, timeout)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}
	if h.Remote != nil {
		return h.Remote.Complete(ctx, model, messages, timeout)
	}
	return nil, fmt.Errorf("hybrid: no backend available for %q", model)
}

func (h *Hybrid) Stream(ctx context.Context, model string, messages []Message, timeout time.Duration) streammux.Producer {
	if p, name := h.resolve(model); p != nil {
		return p.Stream(ctx, name, messages, timeout)
	}
	if h.Local != nil {
		return h.Local.Stream(ctx, model, messages, timeout)
	}
	if h.Remote != nil {
		return h.Remote.Stream(ctx, model, messages, timeout)
	}
	return func(ctx context.Context) <-chan streammux.Chunk {
		out := make(chan streammux.Chunk, 1)
		out <- streammux.Chunk{Type: streammux.TypeError, Message: fmt.Sprintf("hybrid: no backend available for %q", model)}
		close(out)
		return out
	}
}

// ListModels merges the catalogs of every registered backend, prefixing
// namespaced entries with their namespace so the caller can round-trip a
// listed ID back through resolve.
func (h *Hybrid) ListModels(ctx context.Context) ([]string, error) {
	var all []string

	if h.Local != nil {
		models, err := h.Local.ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("hybrid: local: %w", err)
		}
		all = append(all, models...)
	}
	if h.Remote != nil {
		models, err := h.Remote.ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("hybrid: remote: %w", err)
		}
		all = append(all, models...)
	}
	for ns, p := range h.Namespaces {
		models, err := p.ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("hybrid: %s: %w", ns, err)
		}
		for _, m := range models {
			all = append(all, ns+"/"+m)
		}
	}

	return dedupe(all), nil
}
