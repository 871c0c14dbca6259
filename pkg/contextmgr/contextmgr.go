// Package contextmgr implements the context manager: the immediate-context
// window plus background summarization that keeps multi-turn conversations
// within a bounded prompt size.
//
// Grounded on tarsy's pkg/agent/context/stage_context.go windowed context
// assembly (keep-last-K plus a rolled-up summary of the rest) and
// pkg/queue/pool.go's bounded background-worker pool, applied to
// original_source/backend/main.py's inline summarization logic — with its
// dangling-else-after-return control flow flattened into the linear
// if/else-if chain below (see DESIGN.md Open Question 2).
package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
)

// Tunable window constants.
const (
	ImmediateContextKeep = 3 // K
	SummaryRetention     = 3 // R
)

// Manager builds prior-context for a turn and schedules background
// summarization, serialized per conversation through Locks.
type Manager struct {
	Store        conversation.Store
	Orchestrator *council.Orchestrator
	Locks        *conversation.LockRegistry
	Pool         *Pool
}

// BuildResult is BuildPriorContext's output: the prior context to hand the
// orchestrator, and whether this call already wrote a synchronous summary
// message — the caller MUST pass WroteSyncSummary through to
// ScheduleBackgroundSummarization to satisfy the idempotence rule.
type BuildResult struct {
	PriorContext     *council.PriorContext
	WroteSyncSummary bool
}

// BuildPriorContext computes prior_context for conv: no prior turns
// yields nil; at most K finals are joined verbatim; beyond K, the
// older finals are synchronously summarized by chairman and persisted as a
// summary message, with a join-the-recents fallback on summarization
// failure.
func (m *Manager) BuildPriorContext(ctx context.Context, conv *conversation.Conversation, chairmanModel string) (BuildResult, error) {
	finals := conv.Finals()

	if len(finals) == 0 {
		return BuildResult{}, nil
	}

	if len(finals) <= ImmediateContextKeep {
		return BuildResult{PriorContext: stringContext(finals)}, nil
	}

	older := finals[:len(finals)-ImmediateContextKeep]
	recent := finals[len(finals)-ImmediateContextKeep:]

	summary, err := m.summarize(ctx, older, chairmanModel)
	if err != nil {
		return BuildResult{PriorContext: stringContext(recent)}, nil
	}

	if err := m.Store.AddAssistantMessage(ctx, conv.ID, nil, nil, summaryAnswer(summary, len(older))); err != nil {
		return BuildResult{PriorContext: stringContext(recent)}, nil
	}

	text := summary + "\n\n" + strings.Join(recent, "\n\n")
	return BuildResult{
		PriorContext:     &council.PriorContext{Kind: council.PriorContextString, Text: text},
		WroteSyncSummary: true,
	}, nil
}

func (m *Manager) summarize(ctx context.Context, older []string, chairmanModel string) (string, error) {
	messages := council.BuildSummaryMessages(older)
	result, err := m.Orchestrator.Provider.Complete(ctx, chairmanModel, messages, m.Orchestrator.ModelCallTimeout())
	if err != nil {
		return "", fmt.Errorf("contextmgr: summarize: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("contextmgr: summarize: chairman %q unavailable", chairmanModel)
	}
	return result.Content, nil
}

func stringContext(finals []string) *council.PriorContext {
	return &council.PriorContext{Kind: council.PriorContextString, Text: strings.Join(finals, "\n\n")}
}

// summaryAnswer builds the summary message's ChairmanAnswer payload, marked
// by IsSummary() via a non-empty summarized_count metadata entry.
func summaryAnswer(summary string, summarizedCount int) conversation.ChairmanAnswer {
	return conversation.ChairmanAnswer{
		Model:    "summary",
		Response: summary,
		Metadata: map[string]interface{}{"summarized_count": summarizedCount},
	}
}

// ScheduleBackgroundSummarization enqueues best-effort background
// summarization per the retention trigger rule, skipping entirely if the
// synchronous path already wrote a summary this turn (idempotence rule).
func (m *Manager) ScheduleBackgroundSummarization(convID, chairmanModel string, wroteSyncSummary bool) {
	if wroteSyncSummary || m.Pool == nil {
		return
	}
	m.Pool.Submit(Job{ConversationID: convID, ChairmanModel: chairmanModel, manager: m})
}
