package api

import (
	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
	"github.com/codeready-toolchain/llmcouncil/pkg/ranking"
)

// streamEnvelope is the JSON shape written as each SSE data frame: every
// council.Event field, plus title_complete/complete/error's title/message
// fields that have no equivalent in pkg/council's own vocabulary.
type streamEnvelope struct {
	Type      string                          `json:"type"`
	Model     string                          `json:"model,omitempty"`
	Content   string                          `json:"content,omitempty"`
	Stage1    []conversation.PerModelResponse `json:"stage1,omitempty"`
	Stage2    []conversation.PerModelRanking  `json:"stage2,omitempty"`
	Stage3    *conversation.ChairmanAnswer    `json:"stage3,omitempty"`
	LabelMap  map[string]string               `json:"label_map,omitempty"`
	Aggregate []ranking.AggregateRow          `json:"aggregate,omitempty"`
	Title     string                          `json:"title,omitempty"`
	Message   string                          `json:"message,omitempty"`
}

// fromCouncilEvent lifts a pkg/council stage event into the wire envelope.
func fromCouncilEvent(ev council.Event) streamEnvelope {
	return streamEnvelope{
		Type:      string(ev.Type),
		Model:     ev.Model,
		Content:   ev.Content,
		Stage1:    ev.Stage1,
		Stage2:    ev.Stage2,
		Stage3:    ev.Stage3,
		LabelMap:  ev.LabelMap,
		Aggregate: ev.Aggregate,
	}
}

const (
	eventTitleComplete = "title_complete"
	eventComplete      = "complete"
	eventError         = "error"
)
