package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.Create(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, conversation.DefaultTitle, conv.Title)

	got, err := s.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", got.ID)
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestGet_SkipsConfigJSON(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "config")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestAddUserMessageThenAddAssistantMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, s.AddUserMessage(ctx, "c1", "hello council"))

	last, err := s.GetLastUserMessage(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hello council", last.Content)
	assert.Equal(t, conversation.StatusPending, last.Status)

	ok, err := s.MarkLastUserMessageStatus(ctx, "c1", conversation.StatusComplete)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.AddAssistantMessage(ctx, "c1",
		[]conversation.PerModelResponse{{Model: "m1", Response: "r1"}},
		nil,
		conversation.ChairmanAnswer{Model: "chairman", Response: "final"}))

	conv, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, len(conv.Messages))
	assert.Equal(t, "final", conv.Messages[1].Stage3.Response)
}

func TestRemovePendingUserMessages_KeepLast(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, s.AddUserMessage(ctx, "c1", "first"))
	require.NoError(t, s.AddUserMessage(ctx, "c1", "second"))

	removed, err := s.RemovePendingUserMessages(ctx, "c1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	conv, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "second", conv.Messages[0].Content)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "c1"))
	_, err = s.Get(ctx, "c1")
	assert.ErrorIs(t, err, conversation.ErrNotFound)

	// Deleting a non-existent conversation is not an error.
	assert.NoError(t, s.Delete(ctx, "c1"))
}

func TestList_SkipsConfigJSONAndSortsByCreatedAtDesc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "older")
	require.NoError(t, err)
	older, err := s.Get(ctx, "older")
	require.NoError(t, err)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	require.NoError(t, s.Save(ctx, older))

	_, err = s.Create(ctx, "newer")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(s.dataDir, "config.json"), []byte(`{"provider":"remote"}`), 0o644))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
}

func TestList_RecoversListRootedFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dataDir, "broken.json"), []byte(`[{"role":"user"}]`), 0o644))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "broken", list[0].ID)
	assert.Equal(t, "Recovered Conversation", list[0].Title)
	assert.Equal(t, 1, list[0].MessageCount)
}

func TestList_SkipsInvalidJSON(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.dataDir, "garbage.json"), []byte(`not json`), 0o644))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
