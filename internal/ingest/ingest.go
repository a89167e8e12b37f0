package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/flock"

	"github.com/easydom/hellosure/internal/log"
	"github.com/easydom/hellosure/internal/search"
)

// ErrAlreadyRunning means another ingestion process holds the lock file.
var ErrAlreadyRunning = errors.New("ingestion already running")

// batchSize is the number of documents embedded and indexed concurrently.
const batchSize = 16

// Indexer is the corpus write side. *search.Store satisfies it.
type Indexer interface {
	Add(ctx context.Context, doc search.IndexedDocument) error
	Count(ctx context.Context) (int64, error)
}

// Stats summarizes one ingestion run.
type Stats struct {
	Pages   int
	Chunks  int
	Indexed int64
}

// Pipeline crawls a source, chunks each page, and indexes the chunks. A
// file lock serializes runs: two concurrent ingestions over the same corpus
// would race on upserts.
type Pipeline struct {
	source   Source
	store    Indexer
	lockPath string
	logger   log.Logger
}

// NewPipeline creates a Pipeline guarding its runs with the lock file at
// lockPath.
func NewPipeline(source Source, store Indexer, lockPath string, logger log.Logger) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Pipeline{source: source, store: store, lockPath: lockPath, logger: logger}, nil
}

// Run executes one full ingestion: fetch, chunk, index.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	lock := flock.New(p.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquiring ingestion lock: %w", err)
	}
	if !locked {
		return Stats{}, ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("releasing ingestion lock", "error", err)
		}
	}()

	items, err := p.source.Fetch(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("fetching pages: %w", err)
	}

	var docs []search.IndexedDocument
	for _, item := range items {
		docs = append(docs, chunkItem(item)...)
	}

	if err := p.index(ctx, docs); err != nil {
		return Stats{}, err
	}

	stats := Stats{Pages: len(items), Chunks: len(docs)}
	if n, err := p.store.Count(ctx); err == nil {
		stats.Indexed = n
	}

	p.logger.Info("ingestion finished",
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"corpus_size", stats.Indexed)
	return stats, nil
}

// chunkItem splits one page into indexable documents. Single-chunk pages
// keep the page slug as ID; multi-chunk pages get a numeric suffix so
// re-ingestion overwrites the same rows.
func chunkItem(item Item) []search.IndexedDocument {
	chunks := chunkText(item.Text)
	docs := make([]search.IndexedDocument, 0, len(chunks))
	for i, chunk := range chunks {
		id := item.ID
		if i > 0 {
			id = fmt.Sprintf("%s-%d", item.ID, i+1)
		}
		docs = append(docs, search.IndexedDocument{
			ID:     id,
			Public: item.Public,
			URI:    item.URI,
			Title:  item.Title,
			Text:   chunk,
		})
	}
	return docs
}

// index embeds and upserts documents in concurrent batches. The first
// error wins; the batch in flight finishes before it is returned.
func (p *Pipeline) index(ctx context.Context, docs []search.IndexedDocument) error {
	for start := 0; start < len(docs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			firstErr error
		)
		for _, doc := range docs[start:end] {
			wg.Add(1)
			go func(doc search.IndexedDocument) {
				defer wg.Done()
				if err := p.store.Add(ctx, doc); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("indexing %q: %w", doc.ID, err)
					}
					mu.Unlock()
				}
			}(doc)
		}
		wg.Wait()

		if firstErr != nil {
			return firstErr
		}
		p.logger.Debug("batch indexed", "from", start, "to", end)
	}
	return nil
}
