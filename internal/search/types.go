// Package search implements the retrieval side of the Hello Sure
// assistant: vector embeddings and hybrid document search on
// PostgreSQL + pgvector.
package search

// Document is one retrieved corpus document, never mutated after retrieval.
type Document struct {
	URI   string
	Title string
	Text  string
}

// IndexedDocument is a corpus document as stored by the ingestion pipeline.
type IndexedDocument struct {
	ID     string
	Public bool
	URI    string
	Title  string
	Text   string
}

// VectorDimension is the embedding width of the documents table.
// gemini-embedding-001 supports truncation to 768 dimensions
// (Matryoshka Representation Learning); the pgvector schema matches.
const VectorDimension = 768
