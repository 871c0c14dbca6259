package api

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
	"github.com/codeready-toolchain/llmcouncil/pkg/masking"
)

// allModelsFailedMessage is persisted verbatim when stage 1 has zero
// successful responses, matching the boundary-behavior wording.
const allModelsFailedMessage = "All models failed to respond. Please try again."

// redactor scrubs secret-shaped substrings from model output before it is
// persisted, per pkg/masking.
var redactor = masking.NewRedactor()

// buildCouncilRequest assembles a council.Request for one turn, resolving
// council membership and chairman from the council-config document and
// layering the request body's provider hint and skip_stages flag on top.
func (s *Server) buildCouncilRequest(userQuery string, req SendMessageRequest, priorContext *council.PriorContext) (council.Request, error) {
	cfg, err := s.configStore.Get()
	if err != nil {
		return council.Request{}, fmt.Errorf("api: read council config: %w", err)
	}

	hint := req.Provider
	if hint == "" {
		hint = cfg.Provider
	}

	return council.Request{
		UserQuery:     userQuery,
		PriorContext:  priorContext,
		ReplyTo:       req.ReplyToResponse,
		ProviderHint:  hint,
		SkipStages:    req.SkipStages,
		CouncilModels: cfg.CouncilModels,
		ChairmanModel: cfg.ChairmanModel,
	}, nil
}

// finalizeResult normalizes an orchestrator Result into the stage1/stage2/
// stage3 triple that gets persisted and returned to the client: the
// all-models-failed shortcut is rewritten to the fixed product-decision
// wording with empty stage1/stage2, and every model response is passed
// through the redactor.
func finalizeResult(result *council.Result) (stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking, stage3 conversation.ChairmanAnswer) {
	if len(result.Stage1) == 1 && result.Stage1[0].Model == "error" && result.Stage3.Response == "" {
		return nil, nil, conversation.ChairmanAnswer{Model: "error", Response: allModelsFailedMessage}
	}

	stage1 = make([]conversation.PerModelResponse, len(result.Stage1))
	for i, r := range result.Stage1 {
		stage1[i] = conversation.PerModelResponse{Model: r.Model, Response: redactor.Redact(r.Response)}
	}
	stage2 = make([]conversation.PerModelRanking, len(result.Stage2))
	for i, r := range result.Stage2 {
		stage2[i] = r
	}
	stage3 = conversation.ChairmanAnswer{
		Model:    result.Stage3.Model,
		Response: redactor.Redact(result.Stage3.Response),
		Metadata: result.Stage3.Metadata,
	}
	return stage1, stage2, stage3
}

// persistTurn appends the finalized assistant message and flips the user
// message to complete, as one logical step under the caller's
// per-conversation lock.
func (s *Server) persistTurn(ctx context.Context, convID string, result *council.Result) (stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking, stage3 conversation.ChairmanAnswer, err error) {
	stage1, stage2, stage3 = finalizeResult(result)

	if err := s.store.AddAssistantMessage(ctx, convID, stage1, stage2, stage3); err != nil {
		return stage1, stage2, stage3, fmt.Errorf("api: persist assistant message: %w", err)
	}
	if _, err := s.store.MarkLastUserMessageStatus(ctx, convID, conversation.StatusComplete); err != nil {
		return stage1, stage2, stage3, fmt.Errorf("api: mark user message complete: %w", err)
	}
	return stage1, stage2, stage3, nil
}

// messageMetadata renders council.Metadata's label map to a plain
// label->model JSON object.
func messageMetadata(md council.Metadata) MessageMetadata {
	out := MessageMetadata{Aggregate: md.Aggregate}
	if md.LabelMap != nil {
		out.LabelMap = make(map[string]string)
		for _, label := range md.LabelMap.Labels() {
			if model, ok := md.LabelMap.Model(label); ok {
				out.LabelMap[label] = model
			}
		}
	}
	return out
}
