package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/easydom/hellosure/internal/log"
	"github.com/easydom/hellosure/internal/search"
)

// scripted is one canned Complete outcome.
type scripted struct {
	res *Result
	err error
}

// fakeCompleter replays a script of completion outcomes in order, and
// serves one fixed final result (with optional chunks) for CompleteStream.
// Safe for concurrent use so goleak-checked tests stay race-free.
type fakeCompleter struct {
	mu sync.Mutex

	script []scripted

	finalChunks []Chunk
	finalRes    *Result
	finalErr    error

	completeOpts []*Options // snapshot of Messages length is enough for assertions
	streamOpts   []*Options
}

func (f *fakeCompleter) Complete(_ context.Context, opts *Options) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completeOpts = append(f.completeOpts, opts)
	if len(f.script) == 0 {
		return &Result{Finish: FinishStop}, nil
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next.res, next.err
}

func (f *fakeCompleter) CompleteStream(ctx context.Context, opts *Options, cb StreamCallback) (*Result, error) {
	f.mu.Lock()
	chunks := f.finalChunks
	res, err := f.finalRes, f.finalErr
	f.streamOpts = append(f.streamOpts, opts)
	f.mu.Unlock()

	for _, c := range chunks {
		if cbErr := cb(ctx, c); cbErr != nil {
			return nil, cbErr
		}
	}
	return res, err
}

// fakeRetriever records embed/search calls and returns fixed documents.
type fakeRetriever struct {
	mu       sync.Mutex
	embedded []string
	searches int
	docs     []search.Document
}

func (f *fakeRetriever) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedded = append(f.embedded, text)
	return pgvector.NewVector([]float32{0.1, 0.2, 0.3}), nil
}

func (f *fakeRetriever) Search(_ context.Context, _ string, _ pgvector.Vector, _ bool, _, _ int) ([]search.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return f.docs, nil
}

// fakeEvents records the requested range and returns fixed events.
type fakeEvents struct {
	mu     sync.Mutex
	from   time.Time
	to     time.Time
	calls  int
	events []Event
}

func (f *fakeEvents) List(_ context.Context, from, to time.Time) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.from, f.to = from, to
	return f.events, nil
}

// testClock is a fixed "today" so date-range assertions are deterministic.
var testClock = time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, completer *fakeCompleter, retriever *fakeRetriever, events *fakeEvents) *Orchestrator {
	t.Helper()

	if retriever == nil {
		retriever = &fakeRetriever{}
	}
	if events == nil {
		events = &fakeEvents{}
	}

	o, err := New(Config{
		Completer: completer,
		Retriever: retriever,
		Events:    events,
		Logger:    log.NewNop(),
		Now:       func() time.Time { return testClock },
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return o
}

// collect drains a stream into events and the terminal error, if any.
func collect(t *testing.T, s Stream) ([]AnswerEvent, error) {
	t.Helper()

	var events []AnswerEvent
	var terminal error
	for ev, err := range s {
		if err != nil {
			terminal = err
			break
		}
		events = append(events, ev)
	}
	return events, terminal
}

// userRequest builds a single-turn conversation.
func userRequest(text string) *Request {
	return &Request{Messages: []Message{{Role: RoleUser, Content: text}}}
}
