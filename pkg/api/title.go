package api

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/llmcouncil/pkg/council"
)

// scheduleTitleGeneration spawns a best-effort background task that
// generates a short title for a conversation's first message and persists
// it, per the "first message of the conversation" rule. Detached from the
// request context so client disconnect does not abort title generation.
func (s *Server) scheduleTitleGeneration(convID, userQuery, chairmanModel string) {
	go func() {
		ctx := context.Background()
		timeout := s.orchestrator.TitleTimeout
		if timeout <= 0 {
			timeout = council.DefaultTitleTimeout
		}

		title, err := council.GenerateTitle(ctx, s.orchestrator.Provider, chairmanModel, userQuery, timeout)
		if err != nil {
			slog.Warn("api: title generation failed", "conversation_id", convID, "error", err)
			return
		}

		unlock := s.locks.Lock(convID)
		defer unlock()
		if err := s.store.UpdateConversationTitle(ctx, convID, title); err != nil {
			slog.Warn("api: persist generated title failed", "conversation_id", convID, "error", err)
		}
	}()
}
