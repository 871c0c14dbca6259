package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

// parseSSEFrames splits a recorded SSE body into its `data: <json>` frames
// and decodes each into a streamEnvelope.
func parseSSEFrames(t *testing.T, body string) []streamEnvelope {
	t.Helper()
	var out []streamEnvelope
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		line := strings.TrimPrefix(chunk, "data: ")
		line = strings.TrimPrefix(line, "data:")
		var env streamEnvelope
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(line)), &env))
		out = append(out, env)
	}
	return out
}

func TestSendMessageStreamHandler_HappyPath(t *testing.T) {
	p := &fakeProvider{responses: map[string]string{
		"m1": "m1 answer",
		"m2": "m2 answer",
		"m3": rankingResponse("Response A", "Response B"),
	}}
	s := newTestServer(t, p)
	e := echo.New()
	ctx := context.Background()

	conv, err := s.store.Create(ctx, "conv-stream")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/"+conv.ID+"/message/stream", strings.NewReader(`{"content":"what is CRDT?"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(conv.ID)

	require.NoError(t, s.sendMessageStreamHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	frames := parseSSEFrames(t, rec.Body.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, eventComplete, frames[len(frames)-1].Type)

	hasTitle := false
	for _, f := range frames {
		if f.Type == eventTitleComplete {
			hasTitle = true
		}
	}
	assert.True(t, hasTitle, "first turn should emit a title_complete frame")

	stored, err := s.store.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, conversation.StatusComplete, stored.Messages[0].Status)
}

func TestSendMessageStreamHandler_EmptyContentRejected(t *testing.T) {
	s := newTestServer(t, &fakeProvider{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/conversations/x/message/stream", strings.NewReader(`{"content":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("x")

	err := s.sendMessageStreamHandler(c)
	assertHTTPError(t, err, http.StatusBadRequest)
}
