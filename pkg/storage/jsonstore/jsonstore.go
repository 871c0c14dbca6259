// Package jsonstore is a one-JSON-file-per-conversation implementation of
// conversation.Store, the development/default storage backend.
//
// Grounded directly on original_source/backend/storage.py: one file per
// conversation under a data directory, config.json skipped as a
// non-conversation file, list-rooted files recovered into a minimal
// metadata row rather than treated as corrupt, and directory listing
// sorted by created_at descending.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

// configFileName is skipped during Get/List/Delete: it is
// pkg/config.FileStore's council-config document, which commonly lives
// in the same data directory as conversations.
const configFileName = "config.json"

// Store is a conversation.Store backed by <dataDir>/<id>.json files.
type Store struct {
	dataDir string
	locks   *conversation.LockRegistry
}

var _ conversation.Store = (*Store)(nil)

// New returns a Store rooted at dataDir, creating the directory if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create data dir: %w", err)
	}
	return &Store{dataDir: dataDir, locks: conversation.NewLockRegistry()}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dataDir, id+".json")
}

func (s *Store) Create(_ context.Context, id string) (*conversation.Conversation, error) {
	conv := &conversation.Conversation{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Title:     conversation.DefaultTitle,
	}
	if err := s.writeFile(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads a conversation, returning ErrNotFound for a missing file, the
// config.json document, or a file whose JSON root isn't an object —
// storage.py's get_conversation returns None (rather than attempting
// list-recovery) for anything but a dict root; that recovery heuristic is
// List's job only.
func (s *Store) Get(_ context.Context, id string) (*conversation.Conversation, error) {
	return s.readFile(id)
}

func (s *Store) readFile(id string) (*conversation.Conversation, error) {
	if id == strings.TrimSuffix(configFileName, ".json") {
		return nil, conversation.ErrNotFound
	}
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv conversation.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, conversation.ErrNotFound
	}
	return &conv, nil
}

func (s *Store) Save(_ context.Context, conv *conversation.Conversation) error {
	return s.writeFile(conv)
}

func (s *Store) writeFile(conv *conversation.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(conv.ID), data, 0o644)
}

// List enumerates every conversation file, skipping config.json and
// recovering list-rooted files into a minimal metadata row rather than
// discarding them, matching list_conversations' defensive handling.
func (s *Store) List(_ context.Context) ([]conversation.Metadata, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, err
	}

	var out []conversation.Metadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == configFileName {
			continue
		}

		path := filepath.Join(s.dataDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("jsonstore: skipping unreadable file", "path", path, "error", err)
			continue
		}

		var raw json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			slog.Warn("jsonstore: skipping invalid JSON file", "path", path, "error", err)
			continue
		}

		id := strings.TrimSuffix(e.Name(), ".json")

		var asList []json.RawMessage
		if err := json.Unmarshal(raw, &asList); err == nil {
			out = append(out, conversation.Metadata{
				ID:           id,
				CreatedAt:    time.Now().UTC(),
				Title:        "Recovered Conversation",
				MessageCount: len(asList),
			})
			continue
		}

		var conv conversation.Conversation
		if err := json.Unmarshal(raw, &conv); err != nil {
			slog.Warn("jsonstore: skipping unexpected JSON root", "path", path, "error", err)
			continue
		}
		if conv.ID == "" {
			conv.ID = id
		}
		if conv.Title == "" {
			conv.Title = conversation.DefaultTitle
		}
		out = append(out, conversation.Metadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: conv.MessageCount(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// AddUserMessage appends a pending user message under the per-conversation
// lock.
func (s *Store) AddUserMessage(_ context.Context, id, content string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.readFile(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	conv.Messages = append(conv.Messages, conversation.Message{
		Role:            conversation.RoleUser,
		Content:         content,
		Status:          conversation.StatusPending,
		CreatedAt:       now,
		StatusUpdatedAt: now,
	})
	return s.writeFile(conv)
}

// MarkLastUserMessageStatus sets the most recent user message's status,
// reporting whether a user message was found to update.
func (s *Store) MarkLastUserMessageStatus(_ context.Context, id string, status conversation.UserMessageStatus) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.readFile(id)
	if err != nil {
		return false, err
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == conversation.RoleUser {
			conv.Messages[i].Status = status
			conv.Messages[i].StatusUpdatedAt = time.Now().UTC()
			if err := s.writeFile(conv); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// RemovePendingUserMessages strips pending user messages, optionally
// keeping the most recent one (used by retry, which resubmits the last
// pending message rather than dropping it).
func (s *Store) RemovePendingUserMessages(_ context.Context, id string, keepLast bool) (int, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.readFile(id)
	if err != nil {
		return 0, err
	}

	lastPendingIdx := -1
	if keepLast {
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			if conv.Messages[i].Role == conversation.RoleUser && conv.Messages[i].Status == conversation.StatusPending {
				lastPendingIdx = i
				break
			}
		}
	}

	kept := conv.Messages[:0]
	removed := 0
	for i, m := range conv.Messages {
		if m.Role == conversation.RoleUser && m.Status == conversation.StatusPending && i != lastPendingIdx {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	conv.Messages = kept

	if removed > 0 {
		if err := s.writeFile(conv); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

func (s *Store) GetLastUserMessage(_ context.Context, id string) (*conversation.Message, error) {
	conv, err := s.readFile(id)
	if err != nil {
		return nil, err
	}
	msg := conv.LastUserMessage()
	if msg == nil {
		return nil, conversation.ErrNoSuchUser
	}
	cp := *msg
	return &cp, nil
}

func (s *Store) AddAssistantMessage(_ context.Context, id string, stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking, stage3 conversation.ChairmanAnswer) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.readFile(id)
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, conversation.Message{
		Role:   conversation.RoleAssistant,
		Stage1: stage1,
		Stage2: stage2,
		Stage3: stage3,
	})
	return s.writeFile(conv)
}

func (s *Store) UpdateConversationTitle(_ context.Context, id, title string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.readFile(id)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.writeFile(conv)
}
