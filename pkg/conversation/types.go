// Package conversation defines the council's persisted data model and the
// Conversation Store port that external storage backends implement.
package conversation

import "time"

// UserMessageStatus tracks the lifecycle of a user message across
// orchestration attempts.
type UserMessageStatus string

const (
	StatusPending  UserMessageStatus = "pending"
	StatusComplete UserMessageStatus = "complete"
	StatusFailed   UserMessageStatus = "failed"
)

// Role discriminates the Message tagged union.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PerModelResponse is one council member's stage-1 answer.
type PerModelResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// PerModelRanking is one rater's stage-2 evaluation.
type PerModelRanking struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// ChairmanAnswer is the stage-3 synthesis.
type ChairmanAnswer struct {
	Model    string                 `json:"model"`
	Response string                 `json:"response"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SummarizedCount reads stage3.metadata.summarized_count, returning 0 when
// absent or malformed. A non-zero value identifies a summary message.
func (c ChairmanAnswer) SummarizedCount() int {
	if c.Metadata == nil {
		return 0
	}
	switch v := c.Metadata["summarized_count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Message is one conversation turn. Exactly one of the User/Assistant
// sections is populated, selected by Role. Go has no tagged unions, so the
// variants are represented as optional sections guarded by Role, matching
// the flat-struct-over-interface convention tarsy uses for pkg/session.Message.
type Message struct {
	Role Role `json:"role"`

	// User variant.
	Content         string            `json:"content,omitempty"`
	Status          UserMessageStatus `json:"status,omitempty"`
	CreatedAt       time.Time         `json:"created_at,omitempty"`
	StatusUpdatedAt time.Time         `json:"status_updated_at,omitempty"`

	// Assistant variant.
	Stage1 []PerModelResponse `json:"stage1,omitempty"`
	Stage2 []PerModelRanking  `json:"stage2,omitempty"`
	Stage3 ChairmanAnswer     `json:"stage3,omitempty"`
}

// IsSummary reports whether this assistant message is a summary message:
// empty stage1/stage2 and a positive summarized_count.
func (m Message) IsSummary() bool {
	return m.Role == RoleAssistant && len(m.Stage1) == 0 && len(m.Stage2) == 0 && m.Stage3.SummarizedCount() > 0
}

// IsCompletedAssistant reports whether m counts toward "completed assistant
// messages" for the retention-accounting invariant: a non-summary assistant
// message with a non-empty final answer.
func (m Message) IsCompletedAssistant() bool {
	return m.Role == RoleAssistant && !m.IsSummary() && m.Stage3.Response != ""
}

// Conversation is the top-level persisted entity.
type Conversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// DefaultTitle is used for newly created conversations.
const DefaultTitle = "New Conversation"

// Finals returns stage3.response for every non-empty assistant message
// (including summaries) in chronological order.
func (c *Conversation) Finals() []string {
	var out []string
	for _, m := range c.Messages {
		if m.Role == RoleAssistant && m.Stage3.Response != "" {
			out = append(out, m.Stage3.Response)
		}
	}
	return out
}

// LastUserMessage returns a pointer to the most recent user message, or nil.
func (c *Conversation) LastUserMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return &c.Messages[i]
		}
	}
	return nil
}

// CompletedNonSummaryAssistantCount counts assistant messages satisfying
// IsCompletedAssistant, used by the background-summarization trigger.
func (c *Conversation) CompletedNonSummaryAssistantCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.IsCompletedAssistant() {
			n++
		}
	}
	return n
}

// Metadata is the summary row returned by Store.List, matching the
// message_count rule below.
type Metadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// MessageCount implements the message_count rule: completed (or
// status-missing legacy) user messages, plus non-summary assistant messages
// with a non-empty final answer.
func (c *Conversation) MessageCount() int {
	n := 0
	for _, m := range c.Messages {
		switch m.Role {
		case RoleUser:
			if m.Status == StatusComplete || m.Status == "" {
				n++
			}
		case RoleAssistant:
			if m.IsCompletedAssistant() {
				n++
			}
		}
	}
	return n
}
