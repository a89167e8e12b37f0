package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"github.com/easydom/hellosure/internal/log"
	"github.com/easydom/hellosure/internal/search"
)

// fakeSource returns fixed items.
type fakeSource struct {
	items []Item
	err   error
}

func (f *fakeSource) Fetch(context.Context) ([]Item, error) {
	return f.items, f.err
}

// fakeIndexer records every indexed document.
type fakeIndexer struct {
	mu   sync.Mutex
	docs []search.IndexedDocument
	err  error
}

func (f *fakeIndexer) Add(_ context.Context, doc search.IndexedDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeIndexer) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

func newTestPipeline(t *testing.T, source Source, store Indexer) *Pipeline {
	t.Helper()
	lockPath := filepath.Join(t.TempDir(), "ingest.lock")
	p, err := NewPipeline(source, store, lockPath, log.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	return p
}

func TestPipelineRun(t *testing.T) {
	source := &fakeSource{items: []Item{
		{ID: "faq", URI: "https://hellosure.app/faq", Title: "FAQ", Text: "Domande frequenti.", Public: true},
		{ID: "alexa", URI: "https://hellosure.app/alexa", Title: "Alexa", Text: "Configurazione Alexa.", Public: true},
	}}
	store := &fakeIndexer{}

	stats, err := newTestPipeline(t, source, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stats.Pages != 2 || stats.Chunks != 2 || stats.Indexed != 2 {
		t.Errorf("stats = %+v, want 2 pages, 2 chunks, 2 indexed", stats)
	}

	ids := make(map[string]bool)
	for _, doc := range store.docs {
		ids[doc.ID] = true
		if !doc.Public {
			t.Errorf("document %s indexed as private", doc.ID)
		}
	}
	if !ids["faq"] || !ids["alexa"] {
		t.Errorf("indexed IDs = %v, want faq and alexa", ids)
	}
}

func TestPipelineChunksLongPages(t *testing.T) {
	longText := strings.TrimSpace(strings.Repeat("parola ", 3*chunkChars/7))
	source := &fakeSource{items: []Item{
		{ID: "manuale", URI: "https://hellosure.app/manuale", Title: "Manuale", Text: longText, Public: true},
	}}
	store := &fakeIndexer{}

	stats, err := newTestPipeline(t, source, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if stats.Pages != 1 {
		t.Errorf("stats.Pages = %d, want 1", stats.Pages)
	}
	if stats.Chunks < 2 {
		t.Fatalf("stats.Chunks = %d, want several for a long page", stats.Chunks)
	}

	// First chunk keeps the page slug; later chunks get numeric suffixes so
	// re-ingestion overwrites the same rows.
	ids := make(map[string]bool)
	for _, doc := range store.docs {
		ids[doc.ID] = true
		if doc.URI != "https://hellosure.app/manuale" || doc.Title != "Manuale" {
			t.Errorf("chunk %s lost page metadata: %+v", doc.ID, doc)
		}
	}
	if !ids["manuale"] || !ids["manuale-2"] {
		t.Errorf("chunk IDs = %v, want manuale and manuale-2", ids)
	}
}

func TestPipelineLockContention(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "ingest.lock")
	p, err := NewPipeline(&fakeSource{}, &fakeIndexer{}, lockPath, log.NewNop())
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}

	// Hold the lock as a competing process would.
	other := flock.New(lockPath)
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquiring competing lock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = other.Unlock() }()

	if _, err := p.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestPipelineSourceError(t *testing.T) {
	boom := errors.New("sito irraggiungibile")
	p := newTestPipeline(t, &fakeSource{err: boom}, &fakeIndexer{})

	if _, err := p.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want wrapped source error", err)
	}
}

func TestPipelineIndexError(t *testing.T) {
	boom := errors.New("database pieno")
	source := &fakeSource{items: []Item{
		{ID: "faq", Text: "Domande frequenti.", Public: true},
	}}
	p := newTestPipeline(t, source, &fakeIndexer{err: boom})

	if _, err := p.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want wrapped index error", err)
	}
}
