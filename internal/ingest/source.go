// Package ingest builds the Hello Sure document corpus: it crawls the
// support site, extracts readable article text, splits it into
// embedding-sized chunks, and indexes the chunks for hybrid search.
package ingest

import (
	"context"
	"regexp"
	"strings"
)

// Item is one crawled support page ready for chunking and indexing.
type Item struct {
	ID     string
	URI    string
	Title  string
	Text   string
	Public bool
}

// Source produces the pages to index. Implementations must respect ctx
// cancellation.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// skipPrefixes are path prefixes excluded from the crawl: translated
// mirrors of the Italian content and the store pages.
var skipPrefixes = []string{
	"/index.php/en",
	"/index.php/es",
	"/index.php/mx",
	"/index.php/en-au",
	"/store/",
}

// skippedPath reports whether a URL path is excluded from ingestion.
func skippedPath(path string) bool {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// idPattern matches every character that may not appear in a document ID.
var idPattern = regexp.MustCompile(`[^a-zA-Z0-9_\-=]`)

// slugID derives a stable document ID from a URL path.
func slugID(path string) string {
	slug := strings.Trim(path, "/")
	if slug == "" {
		slug = "index"
	}
	return idPattern.ReplaceAllString(slug, "-")
}
