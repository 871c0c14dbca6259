package council

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers deterministically keyed by model name so tests can
// assert on content without a real backend.
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
	return nil, nil
}

func rankingResponse(order ...string) string {
	text := "Evaluation text.\n\nFINAL RANKING:\n"
	for i, label := range order {
		text += string(rune('1'+i)) + ". " + label + "\n"
	}
	return text
}

func TestRun_HappyPath(t *testing.T) {
	p := &fakeProvider{responses: map[string]string{
		"m1": "m1 answer",
		"m2": "m2 answer",
		"m3": rankingResponse("Response A", "Response B"),
	}}
	o := &Orchestrator{Provider: p}

	result, err := o.Run(context.Background(), Request{
		UserQuery:     "what is CRDT?",
		CouncilModels: []string{"m1", "m2"},
		ChairmanModel: "m3",
	})
	require.NoError(t, err)
	require.Len(t, result.Stage1, 2)
	require.Len(t, result.Stage2, 2)
	assert.Equal(t, "m3", result.Stage3.Model)
	require.NotEmpty(t, result.Metadata.Aggregate)
}

func TestRun_AllStage1Fail(t *testing.T) {
	p := &fakeProvider{fail: map[string]bool{"m1": true, "m2": true}}
	o := &Orchestrator{Provider: p}

	result, err := o.Run(context.Background(), Request{
		UserQuery:     "q",
		CouncilModels: []string{"m1", "m2"},
		ChairmanModel: "m3",
	})
	require.NoError(t, err)
	require.Len(t, result.Stage1, 1)
	assert.Equal(t, "error", result.Stage1[0].Model)
	assert.Empty(t, result.Stage2)
}

func TestRun_NoMembersAvailable(t *testing.T) {
	o := &Orchestrator{Provider: &fakeProvider{}}

	_, err := o.Run(context.Background(), Request{
		UserQuery:     "q",
		CouncilModels: nil,
		ChairmanModel: "m3",
	})
	assert.ErrorIs(t, err, ErrNoMembersAvailable)
}

func TestRun_LocalMembershipFiltersByAlias(t *testing.T) {
	p := &fakeProvider{responses: map[string]string{"m1": "m1 answer"}}
	o := &Orchestrator{
		Provider: p,
		ListLocalModels: func(ctx context.Context) ([]string, error) {
			return []string{"m1:latest"}, nil
		},
	}

	result, err := o.Run(context.Background(), Request{
		UserQuery:     "q",
		ProviderHint:  ProviderLocal,
		CouncilModels: []string{"m1", "m2"},
		ChairmanModel: "m1",
	})
	require.NoError(t, err)
	require.Len(t, result.Stage1, 1)
	assert.Equal(t, "m1", result.Stage1[0].Model)
}

func TestRun_ChairmanFallbackToFirstRespondent(t *testing.T) {
	p := &fakeProvider{responses: map[string]string{"m1": "m1 answer"}}
	o := &Orchestrator{
		Provider: p,
		ListLocalModels: func(ctx context.Context) ([]string, error) {
			return []string{"m1"}, nil
		},
	}

	result, err := o.Run(context.Background(), Request{
		UserQuery:     "q",
		ProviderHint:  ProviderLocal,
		CouncilModels: []string{"m1"},
		ChairmanModel: "missing-chairman",
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", result.Stage3.Model)
}

func TestRun_ChairmanFailurePlaceholder(t *testing.T) {
	p := &fakeProvider{
		responses: map[string]string{"m1": "m1 answer"},
		fail:      map[string]bool{"chairman": true},
	}
	o := &Orchestrator{Provider: p}

	result, err := o.Run(context.Background(), Request{
		UserQuery:     "q",
		CouncilModels: []string{"m1"},
		ChairmanModel: "chairman",
	})
	require.NoError(t, err)
	assert.Equal(t, "Error: Unable to generate final synthesis.", result.Stage3.Response)
}

func TestRun_SkipStagesShortcut(t *testing.T) {
	p := &fakeProvider{responses: map[string]string{"m3": "direct chairman answer"}}
	o := &Orchestrator{Provider: p}

	result, err := o.Run(context.Background(), Request{
		UserQuery:     "q",
		SkipStages:    true,
		CouncilModels: []string{"m1", "m2"},
		ChairmanModel: "m3",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Stage1)
	assert.Empty(t, result.Stage2)
	assert.Equal(t, "direct chairman answer", result.Stage3.Response)
}

func TestRunStream_EmitsExpectedEventSequence(t *testing.T) {
	p := &fakeProvider{responses: map[string]string{
		"m1": "m1 answer",
		"m3": rankingResponse("Response A"),
	}}
	o := &Orchestrator{Provider: p}

	events, outcome := o.RunStream(context.Background(), Request{
		UserQuery:     "q",
		CouncilModels: []string{"m1"},
		ChairmanModel: "m3",
	})

	var types []EventType
	for e := range events {
		types = append(types, e.Type)
	}
	out := <-outcome
	require.NoError(t, out.Err)

	assert.Contains(t, types, EventStage1Start)
	assert.Contains(t, types, EventStage1Complete)
	assert.Contains(t, types, EventStage2Start)
	assert.Contains(t, types, EventStage2Metadata)
	assert.Contains(t, types, EventStage3Start)
	assert.Contains(t, types, EventStage3Complete)
}
