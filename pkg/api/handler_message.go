package api

import (
	"context"
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

// sendMessageHandler handles POST /api/conversations/:id/message: the
// synchronous 3-stage run.
func (s *Server) sendMessageHandler(c *echo.Context) error {
	id := c.Param("id")

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	ctx := c.Request().Context()
	unlock := s.locks.Lock(id)
	defer unlock()

	result, err := s.runTurn(ctx, id, req.Content, req, true)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// retryHandler handles POST /api/conversations/:id/pending/retry: the
// synchronous retry of the last pending/failed user message.
func (s *Server) retryHandler(c *echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	unlock := s.locks.Lock(id)
	defer unlock()

	content, err := s.prepareRetry(ctx, id)
	if err != nil {
		return mapServiceError(err)
	}

	result, err := s.runTurn(ctx, id, content, SendMessageRequest{Content: content}, false)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// prepareRetry validates the last user message is retryable and returns
// its original content. Rejects with conversation.ErrBadRequest if the
// status is complete or no user message exists; conversation.ErrNotFound
// still surfaces as-is when the conversation itself doesn't exist.
func (s *Server) prepareRetry(ctx context.Context, convID string) (string, error) {
	msg, err := s.store.GetLastUserMessage(ctx, convID)
	if err != nil {
		if errors.Is(err, conversation.ErrNoSuchUser) {
			return "", conversation.ErrBadRequest
		}
		return "", err
	}
	if msg.Status != conversation.StatusPending && msg.Status != conversation.StatusFailed {
		return "", conversation.ErrBadRequest
	}
	return msg.Content, nil
}

// runTurn drives one turn end-to-end: load the conversation, optionally
// append the user message, build prior context, run the orchestrator, and
// persist the result. Both sendMessageHandler and retryHandler call it
// (the latter with isNewMessage false) after acquiring the
// per-conversation lock for the whole turn.
func (s *Server) runTurn(ctx context.Context, convID, userQuery string, req SendMessageRequest, isNewMessage bool) (*MessageResponse, error) {
	conv, err := s.store.Get(ctx, convID)
	if err != nil {
		return nil, err
	}
	isFirst := len(conv.Messages) == 0

	if isNewMessage {
		if err := s.store.AddUserMessage(ctx, convID, userQuery); err != nil {
			return nil, err
		}
	}

	cfg, err := s.configStore.Get()
	if err != nil {
		return nil, err
	}

	buildResult, err := s.contextMgr.BuildPriorContext(ctx, conv, cfg.ChairmanModel)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(ctx, convID, conversation.StatusFailed)
		return nil, err
	}

	councilReq, err := s.buildCouncilRequest(userQuery, req, buildResult.PriorContext)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(ctx, convID, conversation.StatusFailed)
		return nil, err
	}

	result, err := s.orchestrator.Run(ctx, councilReq)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(ctx, convID, conversation.StatusFailed)
		return nil, err
	}

	stage1, stage2, stage3, err := s.persistTurn(ctx, convID, result)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(ctx, convID, conversation.StatusFailed)
		return nil, err
	}

	s.contextMgr.ScheduleBackgroundSummarization(convID, cfg.ChairmanModel, buildResult.WroteSyncSummary)
	if isFirst {
		s.scheduleTitleGeneration(convID, userQuery, cfg.ChairmanModel)
	}

	return &MessageResponse{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: messageMetadata(result.Metadata),
	}, nil
}
