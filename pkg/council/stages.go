package council

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/ranking"
)

// runStage1 fans req's stage-1 prompt out to every member in parallel,
// mirroring Stage1CollectResponses's query-all/keep-successful shape; failed
// members are simply omitted per the partial-failure policy.
func (o *Orchestrator) runStage1(ctx context.Context, req Request, members []string) []conversation.PerModelResponse {
	messages := buildStage1Messages(req)

	type slot struct {
		ok       bool
		response conversation.PerModelResponse
	}
	slots := make([]slot, len(members))

	var wg sync.WaitGroup
	wg.Add(len(members))
	for i, model := range members {
		go func(i int, model string) {
			defer wg.Done()
			result, err := o.Provider.Complete(ctx, model, messages, o.modelTimeout())
			if err != nil || result == nil {
				return
			}
			slots[i] = slot{ok: true, response: conversation.PerModelResponse{Model: model, Response: result.Content}}
		}(i, model)
	}
	wg.Wait()

	var out []conversation.PerModelResponse
	for _, s := range slots {
		if s.ok {
			out = append(out, s.response)
		}
	}
	return out
}

// runStage2 fans the anonymized stage-2 ranking prompt out to every stage-1
// respondent, parsing each rater's free text via the Ranking Parser.
// Failed raters are omitted per the partial-failure policy.
func (o *Orchestrator) runStage2(ctx context.Context, userQuery string, stage1 []conversation.PerModelResponse, labelMap *ranking.LabelMap) []conversation.PerModelRanking {
	prompt := buildStage2Prompt(userQuery, stage1, labelMap)
	messages := []provider.Message{{Role: "user", Content: prompt}}

	type slot struct {
		ok      bool
		ranking conversation.PerModelRanking
	}
	slots := make([]slot, len(stage1))

	var wg sync.WaitGroup
	wg.Add(len(stage1))
	for i, r := range stage1 {
		go func(i int, model string) {
			defer wg.Done()
			result, err := o.Provider.Complete(ctx, model, messages, o.modelTimeout())
			if err != nil || result == nil {
				return
			}
			slots[i] = slot{ok: true, ranking: conversation.PerModelRanking{
				Model:         model,
				Ranking:       result.Content,
				ParsedRanking: ranking.ParseRanking(result.Content),
			}}
		}(i, r.Model)
	}
	wg.Wait()

	var out []conversation.PerModelRanking
	for _, s := range slots {
		if s.ok {
			out = append(out, s.ranking)
		}
	}
	return out
}

// runStage3 synthesizes the chairman's final answer. A chairman failure
// yields an error placeholder rather than propagating — the assistant
// message must still be persisted so the failure is visible.
func (o *Orchestrator) runStage3(ctx context.Context, userQuery string, stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking, chairman string) conversation.ChairmanAnswer {
	prompt := buildStage3Prompt(userQuery, stage1, stage2)
	messages := []provider.Message{{Role: "user", Content: prompt}}

	result, err := o.Provider.Complete(ctx, chairman, messages, o.modelTimeout())
	if err != nil || result == nil {
		return conversation.ChairmanAnswer{
			Model:    chairman,
			Response: "Error: Unable to generate final synthesis.",
		}
	}

	return conversation.ChairmanAnswer{Model: chairman, Response: result.Content}
}
