package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sse"
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
)

// sseWriter serializes streamEnvelope values as `data: <json>\n\n` frames
// and flushes after each one, per the SSE framing rule.
type sseWriter struct {
	c *echo.Context
}

func newSSEWriter(c *echo.Context) *sseWriter {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	return &sseWriter{c: c}
}

func (w *sseWriter) send(env streamEnvelope) {
	_ = sse.Encode(w.c.Response(), sse.Event{Data: env})
	w.c.Response().Flush()
}

// sendMessageStreamHandler handles POST /api/conversations/:id/message/stream.
func (s *Server) sendMessageStreamHandler(c *echo.Context) error {
	id := c.Param("id")

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	return s.runTurnStream(c, id, req.Content, req, true)
}

// retryStreamHandler handles POST /api/conversations/:id/pending/retry/stream.
func (s *Server) retryStreamHandler(c *echo.Context) error {
	id := c.Param("id")

	unlock := s.locks.Lock(id)
	defer unlock()

	// Persistence-affecting checks use a background context: a disconnect
	// before the orchestrator even starts should not be distinguished from
	// any other disconnect by the persistence rule below.
	content, err := s.prepareRetry(context.Background(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return s.runTurnStream(c, id, content, SendMessageRequest{Content: content}, false)
}

// runTurnStream drives one turn end-to-end over SSE. Store writes use a
// detached background context throughout: a client disconnect cancels the
// orchestrator's in-flight workers (via the request context passed to
// RunStream) but must never abort a store write that has already started,
// per the disconnect rule — a write in flight when the client drops
// completes exactly as it would have otherwise.
func (s *Server) runTurnStream(c *echo.Context, convID, userQuery string, req SendMessageRequest, isNewMessage bool) error {
	bg := context.Background()
	reqCtx := c.Request().Context()

	conv, err := s.store.Get(bg, convID)
	if err != nil {
		return mapServiceError(err)
	}
	isFirst := len(conv.Messages) == 0

	if isNewMessage {
		if err := s.store.AddUserMessage(bg, convID, userQuery); err != nil {
			return mapServiceError(err)
		}
	}

	cfg, err := s.configStore.Get()
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(bg, convID, conversation.StatusFailed)
		return mapServiceError(err)
	}

	buildResult, err := s.contextMgr.BuildPriorContext(bg, conv, cfg.ChairmanModel)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(bg, convID, conversation.StatusFailed)
		return mapServiceError(err)
	}

	councilReq, err := s.buildCouncilRequest(userQuery, req, buildResult.PriorContext)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(bg, convID, conversation.StatusFailed)
		return mapServiceError(err)
	}

	w := newSSEWriter(c)

	events, outcomeCh := s.orchestrator.RunStream(reqCtx, councilReq)
	for ev := range events {
		w.send(fromCouncilEvent(ev))
	}
	outcome := <-outcomeCh

	if outcome.Err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(bg, convID, conversation.StatusFailed)
		w.send(streamEnvelope{Type: eventError, Message: outcome.Err.Error()})
		return nil
	}

	_, _, _, err = s.persistTurn(bg, convID, outcome.Result)
	if err != nil {
		_, _ = s.store.MarkLastUserMessageStatus(bg, convID, conversation.StatusFailed)
		w.send(streamEnvelope{Type: eventError, Message: err.Error()})
		return nil
	}

	s.contextMgr.ScheduleBackgroundSummarization(convID, cfg.ChairmanModel, buildResult.WroteSyncSummary)

	if isFirst {
		s.streamTitleGeneration(w, convID, userQuery, cfg.ChairmanModel)
	}

	w.send(streamEnvelope{Type: eventComplete})
	return nil
}

// streamTitleGeneration generates the conversation title synchronously
// (unlike the sync endpoint's background task) so its title_complete event
// can be forwarded to the client in the expected SSE type order, persisting
// it under the same lock the caller already holds.
func (s *Server) streamTitleGeneration(w *sseWriter, convID, userQuery, chairmanModel string) {
	timeout := s.orchestrator.TitleTimeout
	if timeout <= 0 {
		timeout = council.DefaultTitleTimeout
	}

	title, err := council.GenerateTitle(context.Background(), s.orchestrator.Provider, chairmanModel, userQuery, timeout)
	if err != nil {
		return
	}
	if err := s.store.UpdateConversationTitle(context.Background(), convID, title); err != nil {
		return
	}
	w.send(streamEnvelope{Type: eventTitleComplete, Title: title})
}
