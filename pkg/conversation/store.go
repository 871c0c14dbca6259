package conversation

import (
	"context"
	"errors"
)

// Sentinel errors, mapped to HTTP status by pkg/api.mapError following
// tarsy's services.ErrNotFound / mapServiceError convention
// (pkg/api/errors.go).
var (
	ErrNotFound   = errors.New("conversation not found")
	ErrNoSuchUser = errors.New("no user message found")
	ErrBadRequest = errors.New("bad request")
)

// Store is the Conversation Store port. External backends
// (pkg/storage/jsonstore, pkg/storage/pgstore) implement it. All methods
// must serialize per-conversation writes; see LockRegistry.
type Store interface {
	Create(ctx context.Context, id string) (*Conversation, error)
	Get(ctx context.Context, id string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	List(ctx context.Context) ([]Metadata, error)
	Delete(ctx context.Context, id string) error

	AddUserMessage(ctx context.Context, id, content string) error
	MarkLastUserMessageStatus(ctx context.Context, id string, status UserMessageStatus) (bool, error)
	RemovePendingUserMessages(ctx context.Context, id string, keepLast bool) (int, error)
	GetLastUserMessage(ctx context.Context, id string) (*Message, error)

	AddAssistantMessage(ctx context.Context, id string, stage1 []PerModelResponse, stage2 []PerModelRanking, stage3 ChairmanAnswer) error
	UpdateConversationTitle(ctx context.Context, id, title string) error
}
