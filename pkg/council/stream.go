package council

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/ranking"
	"github.com/codeready-toolchain/llmcouncil/pkg/streammux"
)

// EventType is one of the typed stage events a RunStream caller forwards to
// its own transport (the Handler adds title_complete/complete/error on top).
type EventType string

const (
	EventStage1Start    EventType = "stage1_start"
	EventStage1Model    EventType = "stage1_model_start"
	EventStage1Chunk    EventType = "stage1_chunk"
	EventStage1Complete EventType = "stage1_complete"

	EventStage2Start    EventType = "stage2_start"
	EventStage2Model    EventType = "stage2_model_start"
	EventStage2Metadata EventType = "stage2_metadata"
	EventStage2Chunk    EventType = "stage2_chunk"
	EventStage2Complete EventType = "stage2_complete"

	EventStage3Start    EventType = "stage3_start"
	EventStage3Chunk    EventType = "stage3_chunk"
	EventStage3Complete EventType = "stage3_complete"
)

// Event is one envelope forwarded to the SSE transport.
type Event struct {
	Type    EventType `json:"type"`
	Model   string    `json:"model,omitempty"`
	Content string    `json:"content,omitempty"`

	Stage1 []conversation.PerModelResponse `json:"stage1,omitempty"`
	Stage2 []conversation.PerModelRanking  `json:"stage2,omitempty"`
	Stage3 *conversation.ChairmanAnswer    `json:"stage3,omitempty"`

	LabelMap  map[string]string      `json:"label_map,omitempty"`
	Aggregate []ranking.AggregateRow `json:"aggregate,omitempty"`
}

// Outcome is sent exactly once, after the events channel closes, carrying
// Run's equivalent final Result (or the terminating error, FAILED per the
// state diagram).
type Outcome struct {
	Result *Result
	Err    error
}

// RunStream executes the state machine with typed progress events, using
// the Stream Multiplexer to fan stage 1/2 chunks out in parallel. The events
// channel closes before outcome receives its single value.
func (o *Orchestrator) RunStream(ctx context.Context, req Request) (<-chan Event, <-chan Outcome) {
	events := make(chan Event, 16)
	outcome := make(chan Outcome, 1)

	go func() {
		defer close(events)
		defer close(outcome)

		result, err := o.runStream(ctx, req, events)
		outcome <- Outcome{Result: result, Err: err}
	}()

	return events, outcome
}

func (o *Orchestrator) runStream(ctx context.Context, req Request, events chan<- Event) (*Result, error) {
	members, err := o.selectMembers(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrNoMembersAvailable
	}

	chairmanAvailable := req.ProviderHint != ProviderLocal || containsAlias(members, req.ChairmanModel)

	if req.SkipStages {
		stage3 := o.streamStage3(ctx, req.UserQuery, nil, nil, req.ChairmanModel, events)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{Stage3: stage3}, nil
	}

	stage1 := o.streamStage1(ctx, req, members, events)
	if len(stage1) == 0 {
		errStage1 := []conversation.PerModelResponse{{Model: "error", Response: "All models failed to respond."}}
		events <- Event{Type: EventStage1Complete, Stage1: errStage1}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Result{Stage1: errStage1}, nil
	}
	events <- Event{Type: EventStage1Complete, Stage1: stage1}

	chairman := resolveChairman(req.ChairmanModel, chairmanAvailable, stage1[0].Model)

	labelMap, err := ranking.NewLabelMap(modelsOf(stage1))
	if err != nil {
		return nil, fmt.Errorf("council: %w", err)
	}

	stage2 := o.streamStage2(ctx, req.UserQuery, stage1, labelMap, events)
	events <- Event{Type: EventStage2Complete, Stage2: stage2}

	ratedRankings := make([]ranking.RatedRanking, len(stage2))
	for i, r := range stage2 {
		ratedRankings[i] = ranking.RatedRanking{Model: r.Model, ParsedRanking: r.ParsedRanking}
	}
	aggregate := ranking.Aggregate(ratedRankings, labelMap)

	stage3 := o.streamStage3(ctx, req.UserQuery, stage1, stage2, chairman, events)

	// A client disconnect cancels ctx, which in turn unblocks the stage2/
	// stage3 producers above with their error placeholders rather than real
	// content. Surface the cancellation as the terminating error so the
	// caller never persists a result assembled from a cancelled run.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return &Result{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: Metadata{LabelMap: labelMap, Aggregate: aggregate},
	}, nil
}

// streamStage1 mirrors runStage1 but fans out through streammux.Merge so
// per-model chunks surface as stage1_model_start/stage1_chunk events as they
// arrive, instead of only once each model finishes.
func (o *Orchestrator) streamStage1(ctx context.Context, req Request, members []string, events chan<- Event) []conversation.PerModelResponse {
	events <- Event{Type: EventStage1Start}
	messages := buildStage1Messages(req)

	workers := make([]streammux.Worker, len(members))
	for i, model := range members {
		model := model
		workers[i] = streammux.Worker{
			Source:   model,
			Producer: o.Provider.Stream(ctx, model, messages, o.modelTimeout()),
		}
	}

	return collectResponses(ctx, workers, events, EventStage1Model, EventStage1Chunk)
}

// streamStage2 mirrors runStage2 with the same merge-and-forward shape.
func (o *Orchestrator) streamStage2(ctx context.Context, userQuery string, stage1 []conversation.PerModelResponse, labelMap *ranking.LabelMap, events chan<- Event) []conversation.PerModelRanking {
	events <- Event{Type: EventStage2Start}

	labels := make(map[string]string)
	for _, r := range stage1 {
		if label, ok := labelMap.Label(r.Model); ok {
			labels[label] = r.Model
		}
	}
	events <- Event{Type: EventStage2Metadata, LabelMap: labels}

	prompt := buildStage2Prompt(userQuery, stage1, labelMap)
	messages := []provider.Message{{Role: "user", Content: prompt}}

	workers := make([]streammux.Worker, len(stage1))
	for i, r := range stage1 {
		workers[i] = streammux.Worker{
			Source:   r.Model,
			Producer: o.Provider.Stream(ctx, r.Model, messages, o.modelTimeout()),
		}
	}

	responses := collectResponses(ctx, workers, events, EventStage2Model, EventStage2Chunk)

	rankings := make([]conversation.PerModelRanking, len(responses))
	for i, r := range responses {
		rankings[i] = conversation.PerModelRanking{
			Model:         r.Model,
			Ranking:       r.Response,
			ParsedRanking: ranking.ParseRanking(r.Response),
		}
	}
	return rankings
}

// streamStage3 mirrors runStage3, forwarding the chairman's incremental
// chunks as stage3_chunk events.
func (o *Orchestrator) streamStage3(ctx context.Context, userQuery string, stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking, chairman string, events chan<- Event) conversation.ChairmanAnswer {
	events <- Event{Type: EventStage3Start}

	prompt := buildStage3Prompt(userQuery, stage1, stage2)
	messages := []provider.Message{{Role: "user", Content: prompt}}

	producer := o.Provider.Stream(ctx, chairman, messages, o.modelTimeout())
	var answer conversation.ChairmanAnswer
	answer.Model = chairman

	for c := range producer(ctx) {
		switch c.Type {
		case streammux.TypeChunk:
			events <- Event{Type: EventStage3Chunk, Model: chairman, Content: c.Content}
		case streammux.TypeDone:
			answer.Response = c.Response
		case streammux.TypeError:
			answer.Response = "Error: Unable to generate final synthesis."
		}
	}

	events <- Event{Type: EventStage3Complete, Stage3: &answer}
	return answer
}

// collectResponses merges workers, forwards their chunks as typed events
// under startType/chunkType, and accumulates each worker's full "done"
// content into a PerModelResponse. Workers that only emit start+error
// contribute no response, matching the partial-failure omission rule.
func collectResponses(ctx context.Context, workers []streammux.Worker, events chan<- Event, startType, chunkType EventType) []conversation.PerModelResponse {
	started := make(map[string]bool, len(workers))
	results := make(map[string]string, len(workers))
	order := make([]string, 0, len(workers))

	for l := range streammux.Merge(ctx, workers) {
		switch l.Chunk.Type {
		case streammux.TypeStart:
			if !started[l.Source] {
				started[l.Source] = true
				events <- Event{Type: startType, Model: l.Source}
			}
		case streammux.TypeChunk:
			events <- Event{Type: chunkType, Model: l.Source, Content: l.Chunk.Content}
		case streammux.TypeDone:
			if _, ok := results[l.Source]; !ok {
				order = append(order, l.Source)
			}
			results[l.Source] = l.Chunk.Response
		case streammux.TypeError:
			// Omitted from results per the partial-failure policy.
		}
	}

	out := make([]conversation.PerModelResponse, 0, len(order))
	for _, model := range order {
		out = append(out, conversation.PerModelResponse{Model: model, Response: results[model]})
	}
	return out
}
