package chat

import (
	"context"
	"iter"
	"time"
)

// AnswerEvent is one unit of the outward answer stream. Events must be
// replayed in emission order; concatenating ContentDelta per choice index
// reconstructs the final answer. The sequence is finite and not
// restartable because it mirrors a live remote stream.
type AnswerEvent struct {
	ChoiceIndex  int
	Role         string
	ContentDelta string
}

// Stream is a lazy, finite sequence of answer events. On terminal failure
// it yields exactly one non-nil error and stops; no answer content follows
// an error.
type Stream = iter.Seq2[AnswerEvent, error]

// finishPollInterval bounds the wait between re-checks while a streamed
// completion's finish reason is still pending.
const finishPollInterval = 100 * time.Millisecond

// streamOutcome carries the final result of the goroutine driving the
// remote streaming call.
type streamOutcome struct {
	res *Result
	err error
}

// pumpStream runs fn (the final streaming completion) in its own goroutine
// and yields its chunks as AnswerEvents. The consumer loop never blocks
// indefinitely: it wakes at finishPollInterval to re-check cancellation even
// when no chunk and no finish reason is available yet.
//
// Returns the final completion result (or the producer's error), the number
// of events yielded, and whether the consumer stopped early. When the
// consumer stops early the derived context is cancelled so the producer
// goroutine unwinds.
func pumpStream(
	ctx context.Context,
	yield func(AnswerEvent, error) bool,
	fn func(ctx context.Context, cb StreamCallback) (*Result, error),
) (*Result, error, int, bool) {
	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan Chunk, 64)
	done := make(chan streamOutcome, 1)

	go func() {
		res, err := fn(pumpCtx, func(cbCtx context.Context, c Chunk) error {
			select {
			case chunks <- c:
				return nil
			case <-pumpCtx.Done():
				return pumpCtx.Err()
			case <-cbCtx.Done():
				return cbCtx.Err()
			}
		})
		close(chunks)
		done <- streamOutcome{res: res, err: err}
	}()

	emitted := 0

	ticker := time.NewTicker(finishPollInterval)
	defer ticker.Stop()

	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				// Producer finished; collect the outcome.
				out := <-done
				return out.res, out.err, emitted, false
			}
			if !yield(AnswerEvent{ChoiceIndex: c.Index, Role: RoleAssistant, ContentDelta: c.Text}, nil) {
				return nil, nil, emitted, true
			}
			emitted++
		case <-ctx.Done():
			// Cooperative cancellation: stop immediately. cancel() unblocks
			// the producer goroutine.
			yield(AnswerEvent{}, ctx.Err())
			return nil, nil, emitted, true
		case <-ticker.C:
			// Finish reason still pending; loop and re-check.
		}
	}
}
