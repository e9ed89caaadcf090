package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/scanner"
)

// Default selectors, overridable through source options of the same name.
const (
	defaultItemSelector   = "article"
	defaultTitleSelector  = "h1, h2, h3"
	defaultBodySelector   = "p"
	defaultAuthorSelector = ".author, [rel=author]"
	defaultLinkSelector   = "a[href]"
)

// HTMLScanner extracts items from a listing page using CSS selectors.
type HTMLScanner struct {
	client *http.Client
}

// NewHTMLScanner wires an HTTP client used for page downloads.
func NewHTMLScanner(client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLScanner{client: client}
}

// Kind identifies the strategy inside the registry.
func (h *HTMLScanner) Kind() domain.SourceKind {
	return domain.SourceHTML
}

type selectors struct {
	item, title, body, author, link string
}

// Scan downloads the page and returns one item per element matching the "item" selector.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	if req.Source.Endpoint == "" {
		return nil, fmt.Errorf("no url provided for source %s", req.Source.Name)
	}
	base, err := url.Parse(req.Source.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %s: %w", req.Source.Endpoint, err)
	}

	doc, err := h.fetchDocument(ctx, base.String())
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.Source.Name, err)
	}

	sel := selectors{
		item:   req.Option("item", defaultItemSelector),
		title:  req.Option("title", defaultTitleSelector),
		body:   req.Option("body", defaultBodySelector),
		author: req.Option("author", defaultAuthorSelector),
		link:   req.Option("link", defaultLinkSelector),
	}
	return extractItems(doc, base, sel), nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsPipeline/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractItems(doc *goquery.Document, base *url.URL, sel selectors) []domain.RawItem {
	var items []domain.RawItem
	doc.Find(sel.item).Each(func(_ int, node *goquery.Selection) {
		item, ok := parseEntry(node, base, sel)
		if ok {
			items = append(items, item)
		}
	})
	return items
}

func parseEntry(node *goquery.Selection, base *url.URL, sel selectors) (domain.RawItem, bool) {
	title := strings.TrimSpace(node.Find(sel.title).First().Text())

	var paragraphs []string
	node.Find(sel.body).Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	body := strings.Join(paragraphs, "\n\n")

	if title == "" && body == "" {
		return domain.RawItem{}, false
	}

	author := strings.TrimSpace(node.Find(sel.author).First().Text())

	var link string
	if href, ok := node.Find(sel.link).First().Attr("href"); ok {
		link = resolveLink(base, href)
	}

	return domain.RawItem{
		Title:  title,
		Body:   body,
		Author: author,
		URL:    link,
	}, true
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
