// Package council implements the Council Orchestrator: the 3-stage state
// machine that fans a user query out to N models, has them rank each
// other anonymously, and synthesizes a chairman answer.
//
// Grounded on original_source/backend/council.py's
// stage1_collect_responses/stage2_collect_rankings/stage3_synthesize_final
// and other_examples' greenstevester-llm-senate-council Go port of the same
// algorithm, generalized off both source's hardcoded CouncilModels global
// into a per-Request member list, and adapted onto this module's
// provider.Provider / streammux.Producer ports instead of a bespoke
// OpenRouter-only client.
package council

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/ranking"
)

// Error kinds, as sentinel errors mapped to HTTP status by pkg/api.
var (
	ErrNoMembersAvailable = errors.New("no council members available")
	ErrAllModelsFailed    = errors.New("all council models failed to respond")
)

// Default per-call upstream timeouts.
const (
	DefaultModelTimeout = 120 * time.Second
	DefaultTitleTimeout = 30 * time.Second
)

// ProviderLocal is the provider_hint value that triggers local-runtime
// membership filtering.
const ProviderLocal = "local"

// PriorContextKind discriminates PriorContext's payload: an untyped
// prior_context union resolved with an explicit enum instead of relying
// on Go's dynamic-typing-free zero values (see DESIGN.md Open Question 1).
type PriorContextKind int

const (
	PriorContextNone PriorContextKind = iota
	PriorContextString
	PriorContextMessages
)

// PriorContext is what the Context Manager hands the orchestrator: either no
// prior turns, a pre-summarized string, or a raw prior message sequence.
type PriorContext struct {
	Kind     PriorContextKind
	Text     string
	Messages []provider.Message
}

// Request is the input to Run/RunStream.
type Request struct {
	UserQuery     string
	PriorContext  *PriorContext
	ReplyTo       string // reply_to_response; takes priority over PriorContext when non-empty.
	ProviderHint  string
	SkipStages    bool
	CouncilModels []string
	ChairmanModel string
}

// Result is the orchestrator's output: (stage1, stage2, stage3, metadata).
type Result struct {
	Stage1   []conversation.PerModelResponse
	Stage2   []conversation.PerModelRanking
	Stage3   conversation.ChairmanAnswer
	Metadata Metadata
}

// Metadata carries the leaderboard and label map alongside a run's results,
// mirroring the Go reference's Metadata{LabelToModel, AggregateRankings}.
type Metadata struct {
	LabelMap  *ranking.LabelMap
	Aggregate []ranking.AggregateRow
}

// Orchestrator drives the state machine over a single Provider Port.
type Orchestrator struct {
	Provider provider.Provider

	// ListLocalModels enumerates the local runtime's available models, used
	// only when a Request's ProviderHint is ProviderLocal. Nil means no
	// local runtime is configured.
	ListLocalModels func(ctx context.Context) ([]string, error)

	ModelTimeout time.Duration
	TitleTimeout time.Duration
}

func (o *Orchestrator) modelTimeout() time.Duration {
	if o.ModelTimeout > 0 {
		return o.ModelTimeout
	}
	return DefaultModelTimeout
}

func (o *Orchestrator) titleTimeout() time.Duration {
	if o.TitleTimeout > 0 {
		return o.TitleTimeout
	}
	return DefaultTitleTimeout
}

// ModelCallTimeout exposes the resolved per-model timeout (configured or
// DefaultModelTimeout) for callers outside this package that issue their
// own Provider calls against this Orchestrator's chairman, such as the
// Context Manager's synchronous summarization call.
func (o *Orchestrator) ModelCallTimeout() time.Duration {
	return o.modelTimeout()
}

// selectMembers applies membership selection: for a local provider hint,
// filter the configured council list down to what's actually available
// locally (matching ":latest" aliases).
func (o *Orchestrator) selectMembers(ctx context.Context, req Request) ([]string, error) {
	if req.ProviderHint != ProviderLocal || o.ListLocalModels == nil {
		return req.CouncilModels, nil
	}

	available, err := o.ListLocalModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("council: list local models: %w", err)
	}

	var members []string
	for _, want := range req.CouncilModels {
		for _, have := range available {
			if provider.MatchesAlias(want, have) {
				members = append(members, want)
				break
			}
		}
	}
	return members, nil
}

// resolveChairman applies the chairman fallback rule. chairmanAvailable is
// false when the configured chairman didn't survive selectMembers's local
// filtering; firstRespondent is the first stage-1 model that actually
// produced a response (populated once stage 1 completes).
func resolveChairman(configured string, chairmanAvailable bool, firstRespondent string) string {
	if chairmanAvailable || firstRespondent == "" {
		return configured
	}
	return firstRespondent
}

// Run executes the full (or skip_stages-shortened) state machine
// synchronously and returns its final Result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	members, err := o.selectMembers(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrNoMembersAvailable
	}

	chairmanAvailable := req.ProviderHint != ProviderLocal || containsAlias(members, req.ChairmanModel)

	if req.SkipStages {
		stage3 := o.runStage3(ctx, req.UserQuery, nil, nil, req.ChairmanModel)
		return &Result{Stage3: stage3}, nil
	}

	stage1 := o.runStage1(ctx, req, members)
	if len(stage1) == 0 {
		return &Result{
			Stage1: []conversation.PerModelResponse{{Model: "error", Response: "All models failed to respond."}},
		}, nil
	}

	chairman := resolveChairman(req.ChairmanModel, chairmanAvailable, stage1[0].Model)

	labelMap, err := ranking.NewLabelMap(modelsOf(stage1))
	if err != nil {
		return nil, fmt.Errorf("council: %w", err)
	}

	stage2 := o.runStage2(ctx, req.UserQuery, stage1, labelMap)

	ratedRankings := make([]ranking.RatedRanking, len(stage2))
	for i, r := range stage2 {
		ratedRankings[i] = ranking.RatedRanking{Model: r.Model, ParsedRanking: r.ParsedRanking}
	}
	aggregate := ranking.Aggregate(ratedRankings, labelMap)

	stage3 := o.runStage3(ctx, req.UserQuery, stage1, stage2, chairman)

	return &Result{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: Metadata{LabelMap: labelMap, Aggregate: aggregate},
	}, nil
}

func containsAlias(members []string, model string) bool {
	for _, m := range members {
		if provider.MatchesAlias(m, model) {
			return true
		}
	}
	return false
}

func modelsOf(responses []conversation.PerModelResponse) []string {
	models := make([]string, len(responses))
	for i, r := range responses {
		models[i] = r.Model
	}
	return models
}
