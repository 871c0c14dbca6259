package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

func TestConversationCRUD(t *testing.T) {
	s := newTestServer(t, &fakeProvider{})
	e := echo.New()

	// Create.
	req := httptest.NewRequest(http.MethodPost, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, s.createConversationHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var created conversation.Conversation
	decodeJSON(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, conversation.DefaultTitle, created.Title)

	// List.
	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	require.NoError(t, s.listConversationsHandler(c))
	var list []conversation.Metadata
	decodeJSON(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	// Get.
	req = httptest.NewRequest(http.MethodGet, "/api/conversations/"+created.ID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)
	require.NoError(t, s.getConversationHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Get missing → not_found.
	req = httptest.NewRequest(http.MethodGet, "/api/conversations/missing", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")
	err := s.getConversationHandler(c)
	assertHTTPError(t, err, http.StatusNotFound)

	// Delete.
	req = httptest.NewRequest(http.MethodDelete, "/api/conversations/"+created.ID, nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID)
	require.NoError(t, s.deleteConversationHandler(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
