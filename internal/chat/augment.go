package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/easydom/hellosure/internal/search"
)

// citationInstruction is appended to the system message the first time
// sources are injected, so the model cites them in bracketed form.
const citationInstruction = `Ogni fonte è sempre nel formato <source uri="fonte" title="titolo">contenuto</source>. Utilizza le parentesi quadre per fare riferimento alla fonte, ad esempio [titolo::fonte]. Non combinare le fonti, elenca ciascuna fonte separatamente, ad esempio [titolo1::fonte1][titolo2::fonte2].`

// Retriever is the boundary to the remote search service. Implementations
// must be safe for concurrent use by independent runs.
type Retriever interface {
	// Embed converts text into a dense query vector.
	Embed(ctx context.Context, text string) (pgvector.Vector, error)

	// Search returns documents ranked for the query. The vector selects a
	// candidate set of at least `candidates` documents before truncation to
	// topK; publicOnly restricts results to publicly answerable documents.
	Search(ctx context.Context, query string, vector pgvector.Vector, publicOnly bool, candidates, topK int) ([]search.Document, error)
}

// augment executes the retrieval-augmentation tool: rewrite the
// conversation into a query, embed it, search, and inject the formatted
// sources as a tool message.
//
// It refuses to run twice in the same orchestration run. The guard is the
// citation instruction already appended to the system message: when present,
// the request is treated as already satisfied and nothing is duplicated.
func (o *Orchestrator) augment(ctx context.Context, run *run, call ToolCall) error {
	if strings.HasSuffix(systemText(run.opts.Messages), citationInstruction) {
		o.logger.Warn("sources already retrieved in this run, ignoring duplicate request")
		return nil
	}

	query, err := o.rewriteQuery(ctx, run.req)
	if err != nil {
		return err
	}

	vector, err := o.retriever.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embedding query: %w", err)
	}

	docs, err := o.retriever.Search(ctx, query, vector, true, o.candidates, o.topK)
	if err != nil {
		return fmt.Errorf("searching sources: %w", err)
	}

	// An empty result still produces a valid (empty) sources block; the
	// model answers from what it has and points at the support site.
	var sources strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&sources, "<source uri=%q title=%q>%s</source>\n", doc.URI, doc.Title, doc.Text)
	}

	appendSystemText(run.opts.Messages, citationInstruction)
	appendToolMessage(run.opts, QueryToolName, call.Ref, "\n\nFonti:\n"+sources.String())

	o.logger.Info("sources injected", "documents", len(docs), "query_length", len(query))
	return nil
}
