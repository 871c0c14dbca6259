package api

import (
	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/ranking"
)

// HealthResponse is returned by GET /api/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// MessageResponse is returned by POST /api/conversations/{id}/message and
// POST /api/conversations/{id}/pending/retry: the full 3-stage result.
type MessageResponse struct {
	Stage1   []conversation.PerModelResponse `json:"stage1"`
	Stage2   []conversation.PerModelRanking  `json:"stage2"`
	Stage3   conversation.ChairmanAnswer     `json:"stage3"`
	Metadata MessageMetadata                 `json:"metadata"`
}

// MessageMetadata is MessageResponse's label map and leaderboard, rendered
// for JSON as a plain label->model map rather than the internal
// ranking.LabelMap type.
type MessageMetadata struct {
	LabelMap  map[string]string       `json:"label_map,omitempty"`
	Aggregate []ranking.AggregateRow `json:"aggregate,omitempty"`
}

// RemovePendingResponse is returned by POST
// /api/conversations/{id}/pending/remove.
type RemovePendingResponse struct {
	Removed int `json:"removed"`
}

// StatusUpdateResponse is returned by POST
// /api/conversations/{id}/user-message/status.
type StatusUpdateResponse struct {
	Success bool `json:"success"`
}

// AvailableModelsResponse is returned by GET /api/available-models.
type AvailableModelsResponse struct {
	Models []string `json:"models"`
}
