package streammux

import (
	"context"
	"sync"
)

// Worker is one named chunk producer to merge.
type Worker struct {
	Source   string
	Producer Producer
}

// Merge fans out each worker's Producer in its own goroutine and merges
// their Chunks into one channel of Labeled events, preserving each worker's
// intra-source FIFO order while interleaving across workers in arrival
// order (nondeterministic by design).
//
// The returned channel is buffered to len(workers), mirroring tarsy's
// SubAgentRunner.resultsCh sizing (capacity = concurrency limit) so a
// worker never blocks on the channel alone — the real throttle is the
// consumer's read rate.
//
// The merged channel closes once every worker's Producer channel has
// closed, or immediately once ctx is cancelled and all worker goroutines
// have observed it and returned.
func Merge(ctx context.Context, workers []Worker) <-chan Labeled {
	out := make(chan Labeled, max(1, len(workers)))

	var wg sync.WaitGroup
	wg.Add(len(workers))

	for _, w := range workers {
		w := w
		go func() {
			defer wg.Done()
			forward(ctx, w, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// forward reads w's Producer channel to completion (or until ctx is done)
// and republishes each Chunk labeled with its source, dropping the internal
// typeComplete marker.
func forward(ctx context.Context, w Worker, out chan<- Labeled) {
	in := w.Producer(ctx)
	for {
		select {
		case c, ok := <-in:
			if !ok {
				return
			}
			if c.Type == typeComplete {
				continue
			}
			select {
			case out <- Labeled{Source: w.Source, Chunk: c}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			// Best-effort: the producer is expected to observe ctx itself
			// and close its channel; we stop forwarding regardless so a
			// slow/unresponsive producer cannot wedge the merge.
			drain(in)
			return
		}
	}
}

// drain discards any further chunks from a cancelled producer so its
// goroutine (if any) can exit without blocking on a send: workers that
// cannot be aborted proceed to completion but their output is discarded.
func drain(in <-chan Chunk) {
	for range in {
	}
}
