package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/easydom/hellosure/internal/log"
)

const (
	crawlUserAgent   = "HelloSureBot/1.0"
	crawlMaxDepth    = 8
	crawlParallelism = 2
	crawlDelay       = 500 * time.Millisecond

	// readabilityMinChars guards against pages where the article extractor
	// found only boilerplate.
	readabilityMinChars = 80
)

// SiteSource crawls the support site starting from a single URL, staying on
// the same host and skipping translated mirrors and store pages.
type SiteSource struct {
	start    string
	maxPages int
	logger   log.Logger
}

// NewSiteSource creates a SiteSource. maxPages <= 0 means no page cap.
func NewSiteSource(start string, maxPages int, logger log.Logger) (*SiteSource, error) {
	if _, err := url.Parse(start); err != nil {
		return nil, fmt.Errorf("parsing start URL: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &SiteSource{start: start, maxPages: maxPages, logger: logger}, nil
}

// Fetch implements Source by crawling the site breadth-first from the start
// URL. Every fetched page becomes one public Item; extraction failures are
// logged and skipped rather than failing the crawl.
func (s *SiteSource) Fetch(ctx context.Context) ([]Item, error) {
	start, err := url.Parse(s.start)
	if err != nil {
		return nil, fmt.Errorf("parsing start URL: %w", err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(crawlMaxDepth),
		colly.UserAgent(crawlUserAgent),
		colly.StdlibContext(ctx),
		colly.Async(true),
	)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: crawlParallelism,
		Delay:       crawlDelay,
	}); err != nil {
		return nil, fmt.Errorf("configuring crawl limits: %w", err)
	}

	var (
		mu    sync.Mutex
		items []Item
	)

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if u, err := url.Parse(link); err != nil || skippedPath(u.Path) {
			return
		}
		mu.Lock()
		full := s.maxPages > 0 && len(items) >= s.maxPages
		mu.Unlock()
		if full {
			return
		}
		_ = e.Request.Visit(link)
	})

	c.OnResponse(func(r *colly.Response) {
		pageURL := r.Request.URL
		if skippedPath(pageURL.Path) {
			return
		}
		if ct := r.Headers.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
			return
		}

		title, text := extractArticle(r.Body, pageURL)
		if text == "" {
			s.logger.Warn("no readable content, skipping page", "url", pageURL.String())
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if s.maxPages > 0 && len(items) >= s.maxPages {
			return
		}
		items = append(items, Item{
			ID:     slugID(pageURL.Path),
			URI:    pageURL.String(),
			Title:  title,
			Text:   text,
			Public: true,
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		s.logger.Warn("page fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := c.Visit(s.start); err != nil {
		return nil, fmt.Errorf("starting crawl at %s: %w", s.start, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("crawl finished", "start", s.start, "pages", len(items))
	return items, nil
}

// extractArticle pulls the readable title and text out of an HTML page.
// Mozilla's readability algorithm is tried first; when it finds too little
// text the whole body text is used, with the <title> tag as title.
func extractArticle(body []byte, pageURL *url.URL) (title, text string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		text = normalizeSpace(article.TextContent)
		if len(text) >= readabilityMinChars {
			return strings.TrimSpace(article.Title), text
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	doc.Find("script, style, noscript, nav, footer, header").Remove()
	title = strings.TrimSpace(doc.Find("title").First().Text())
	return title, normalizeSpace(doc.Find("body").Text())
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
