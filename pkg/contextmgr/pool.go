package contextmgr

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

// Job is one background summarization unit of work.
type Job struct {
	ConversationID string
	ChairmanModel  string

	manager *Manager
}

// Pool is a small bounded background-worker pool, grounded on tarsy's
// pkg/queue/pool.go/worker.go fixed-size-goroutines-over-a-channel shape
// but stripped of its per-pod orphan-recovery/ent-session machinery, which
// has no analog for a best-effort in-process summarization task.
type Pool struct {
	jobs     chan Job
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewPool starts workers goroutines consuming a queue of depth backlog.
// Submit never blocks past backlog capacity — a full queue drops the job,
// since background summarization is explicitly best-effort.
func NewPool(workers, backlog int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if backlog < 1 {
		backlog = 1
	}
	p := &Pool{
		jobs:   make(chan Job, backlog),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job.process()
		case <-p.stopCh:
			return
		}
	}
}

// Submit enqueues job, dropping it (with a logged warning) if the backlog is
// full.
func (p *Pool) Submit(job Job) {
	select {
	case p.jobs <- job:
	default:
		slog.Warn("contextmgr: background summarization queue full, dropping job",
			"conversation_id", job.ConversationID)
	}
}

// Stop signals all workers to exit after their current job and waits for
// them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// process re-reads the conversation under the single-writer lock and
// re-evaluates the retention trigger, since time has passed since
// scheduling and a concurrent turn may have already resolved it.
func (j Job) process() {
	ctx := context.Background()
	unlock := j.manager.Locks.Lock(j.ConversationID)
	defer unlock()

	conv, err := j.manager.Store.Get(ctx, j.ConversationID)
	if err != nil {
		slog.Warn("contextmgr: background summarization: conversation not found",
			"conversation_id", j.ConversationID, "error", err)
		return
	}

	count := conv.CompletedNonSummaryAssistantCount()
	if count <= SummaryRetention {
		return
	}

	finals := nonSummaryFinals(conv)
	older := finals[:len(finals)-SummaryRetention]
	if len(older) == 0 {
		return
	}

	summary, err := j.manager.summarize(ctx, older, j.ChairmanModel)
	if err != nil {
		slog.Warn("contextmgr: background summarization failed",
			"conversation_id", j.ConversationID, "error", err)
		return
	}

	if err := j.manager.Store.AddAssistantMessage(ctx, j.ConversationID, nil, nil, summaryAnswer(summary, len(older))); err != nil {
		slog.Warn("contextmgr: background summarization: persist failed",
			"conversation_id", j.ConversationID, "error", err)
	}
}

// nonSummaryFinals returns stage3.response for non-summary completed
// assistant messages, chronological order — the same population
// CompletedNonSummaryAssistantCount counts.
func nonSummaryFinals(conv *conversation.Conversation) []string {
	var out []string
	for _, m := range conv.Messages {
		if m.IsCompletedAssistant() {
			out = append(out, m.Stage3.Response)
		}
	}
	return out
}
