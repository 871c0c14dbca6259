package pgstore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestStore starts a disposable Postgres container, applies the
// embedded migrations against it through database.NewClient, and returns
// a Store wrapping the resulting pool.
func newTestStore(t *testing.T) *Store {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("councild_test"),
		postgres.WithUsername("councild"),
		postgres.WithPassword("councild"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := database.Config{
		Host:            host,
		Port:            port.Int(),
		User:            "councild",
		Password:        "councild",
		Database:        "councild_test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}

	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return New(client.Pool)
}

func TestStore_CreateThenGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, conversation.DefaultTitle, conv.Title)

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Empty(t, got.Messages)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestStore_AddUserMessageThenAddAssistantMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "conv-2")
	require.NoError(t, err)

	require.NoError(t, store.AddUserMessage(ctx, "conv-2", "what is the capital of France?"))

	last, err := store.GetLastUserMessage(ctx, "conv-2")
	require.NoError(t, err)
	assert.Equal(t, "what is the capital of France?", last.Content)
	assert.Equal(t, conversation.StatusPending, last.Status)

	found, err := store.MarkLastUserMessageStatus(ctx, "conv-2", conversation.StatusComplete)
	require.NoError(t, err)
	assert.True(t, found)

	stage1 := []conversation.PerModelResponse{{Model: "model-a", Response: "Paris"}}
	stage2 := []conversation.PerModelRanking{{Model: "model-a", Ranking: "1. model-a", ParsedRanking: []string{"model-a"}}}
	stage3 := conversation.ChairmanAnswer{Response: "Paris is the capital of France."}
	require.NoError(t, store.AddAssistantMessage(ctx, "conv-2", stage1, stage2, stage3))

	conv, err := store.Get(ctx, "conv-2")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, conversation.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, conversation.StatusComplete, conv.Messages[0].Status)
	assert.Equal(t, conversation.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "Paris is the capital of France.", conv.Messages[1].Stage3.Response)
}

func TestStore_RemovePendingUserMessages_KeepLast(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "conv-3")
	require.NoError(t, err)

	require.NoError(t, store.AddUserMessage(ctx, "conv-3", "first"))
	require.NoError(t, store.AddUserMessage(ctx, "conv-3", "second"))
	require.NoError(t, store.AddUserMessage(ctx, "conv-3", "third"))

	removed, err := store.RemovePendingUserMessages(ctx, "conv-3", true)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	conv, err := store.Get(ctx, "conv-3")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "third", conv.Messages[0].Content)
}

func TestStore_List_SortsByCreatedAtDescAndCountsMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older, err := store.Create(ctx, "conv-older")
	require.NoError(t, err)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	older.Title = "Older"
	require.NoError(t, store.Save(ctx, older))

	newer, err := store.Create(ctx, "conv-newer")
	require.NoError(t, err)
	newer.Title = "Newer"
	require.NoError(t, store.AddUserMessage(ctx, "conv-newer", "hi"))
	_, err = store.MarkLastUserMessageStatus(ctx, "conv-newer", conversation.StatusComplete)
	require.NoError(t, err)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "conv-newer", list[0].ID)
	assert.Equal(t, 1, list[0].MessageCount)
	assert.Equal(t, "conv-older", list[1].ID)
	assert.Equal(t, 0, list[1].MessageCount)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "conv-4")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "conv-4"))

	_, err = store.Get(ctx, "conv-4")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestStore_UpdateConversationTitle_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateConversationTitle(context.Background(), "missing-"+strconv.Itoa(1), "New Title")
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}
