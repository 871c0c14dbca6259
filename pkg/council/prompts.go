package council

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/provider"
	"github.com/codeready-toolchain/llmcouncil/pkg/ranking"
)

// buildStage1Messages assembles the stage-1 prompt: reply_to takes
// priority over prior_context; a string prior_context is prepended to the
// user query as a single turn; a message-sequence prior_context has the
// query appended as the final turn.
func buildStage1Messages(req Request) []provider.Message {
	if req.ReplyTo != "" {
		return []provider.Message{{
			Role:    "user",
			Content: fmt.Sprintf("The user is replying to:\n\n%s\n\n%s", req.ReplyTo, req.UserQuery),
		}}
	}

	if req.PriorContext == nil {
		return []provider.Message{{Role: "user", Content: req.UserQuery}}
	}

	switch req.PriorContext.Kind {
	case PriorContextString:
		return []provider.Message{{
			Role:    "user",
			Content: req.PriorContext.Text + "\n\n" + req.UserQuery,
		}}
	case PriorContextMessages:
		messages := make([]provider.Message, len(req.PriorContext.Messages), len(req.PriorContext.Messages)+1)
		copy(messages, req.PriorContext.Messages)
		return append(messages, provider.Message{Role: "user", Content: req.UserQuery})
	default:
		return []provider.Message{{Role: "user", Content: req.UserQuery}}
	}
}

// buildStage2Prompt renders each stage-1 response under its opaque label in
// insertion order, grounded on council.py/council.go.go's ranking prompt
// template.
func buildStage2Prompt(userQuery string, stage1 []conversation.PerModelResponse, labelMap *ranking.LabelMap) string {
	var responses strings.Builder
	for _, r := range stage1 {
		label, _ := labelMap.Label(r.Model)
		fmt.Fprintf(&responses, "%s:\n%s\n\n", label, r.Response)
	}

	return fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s
Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Now provide your evaluation and ranking:`, userQuery, responses.String())
}

// buildStage3Prompt renders the chairman synthesis prompt, grounded on
// council.py/council.go.go's chairman template.
func buildStage3Prompt(userQuery string, stage1 []conversation.PerModelResponse, stage2 []conversation.PerModelRanking) string {
	var stage1Text strings.Builder
	for _, r := range stage1 {
		fmt.Fprintf(&stage1Text, "Model: %s\nResponse: %s\n\n", r.Model, r.Response)
	}

	var stage2Text strings.Builder
	for _, r := range stage2 {
		fmt.Fprintf(&stage2Text, "Model: %s\nRanking: %s\n\n", r.Model, r.Ranking)
	}

	return fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s
STAGE 2 - Peer Rankings:
%s
Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, userQuery, stage1Text.String(), stage2Text.String())
}

// buildSummaryPrompt renders the Context Manager's synchronous-summary
// prompt: a single user turn instructing a one-paragraph summary of the
// given prior finals.
func buildSummaryPrompt(finals []string) string {
	return fmt.Sprintf(`Summarize the following prior answers from this conversation in one paragraph, preserving the key facts and conclusions a reader would need to follow later turns:

%s`, strings.Join(finals, "\n\n"))
}

// BuildSummaryMessages exposes buildSummaryPrompt as a ready single-turn
// message list for the Context Manager's chairman call.
func BuildSummaryMessages(finals []string) []provider.Message {
	return []provider.Message{{Role: "user", Content: buildSummaryPrompt(finals)}}
}

// titlePrompt mirrors council.go.go's GenerateConversationTitle template.
func titlePrompt(userQuery string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)
}

const maxTitleLength = 50

// GenerateTitle queries model for a short conversation title, grounded on
// council.go.go's GenerateConversationTitle (quote-stripping, truncation).
func GenerateTitle(ctx context.Context, p provider.Provider, model, userQuery string, timeout time.Duration) (string, error) {
	messages := []provider.Message{{Role: "user", Content: titlePrompt(userQuery)}}

	result, err := p.Complete(ctx, model, messages, timeout)
	if err != nil {
		return "", fmt.Errorf("council: generate title: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("council: generate title: model %q unavailable", model)
	}

	title := strings.Trim(strings.TrimSpace(result.Content), `"'`)
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength-3] + "..."
	}
	return title, nil
}
