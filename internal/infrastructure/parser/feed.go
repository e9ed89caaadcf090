package parser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/scanner"
)

const defaultFeedLimit = 50

// FeedScanner reads RSS, Atom and JSON feeds.
type FeedScanner struct {
	client *http.Client
}

// NewFeedScanner wires an HTTP client used for feed downloads.
func NewFeedScanner(client *http.Client) *FeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &FeedScanner{client: client}
}

// Kind identifies the strategy inside the registry.
func (f *FeedScanner) Kind() domain.SourceKind {
	return domain.SourceRSS
}

// Scan downloads the feed and converts up to the "limit" option of its entries.
func (f *FeedScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawItem, error) {
	if req.Source.Endpoint == "" {
		return nil, fmt.Errorf("no url provided for source %s", req.Source.Name)
	}

	limit, err := strconv.Atoi(req.Option("limit", strconv.Itoa(defaultFeedLimit)))
	if err != nil || limit <= 0 {
		return nil, fmt.Errorf("invalid limit option for source %s", req.Source.Name)
	}

	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = "NewsPipeline/1.0"

	feed, err := parser.ParseURLWithContext(req.Source.Endpoint, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", req.Source.Endpoint, err)
	}

	items := make([]domain.RawItem, 0, min(limit, len(feed.Items)))
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		item, ok := feedItem(entry)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func feedItem(entry *gofeed.Item) (domain.RawItem, bool) {
	title := strings.TrimSpace(entry.Title)
	body := entry.Content
	if body == "" {
		body = entry.Description
	}
	if title == "" && strings.TrimSpace(body) == "" {
		return domain.RawItem{}, false
	}

	link := entry.Link
	if link == "" {
		link = entry.GUID
	}

	var author string
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		author = entry.Authors[0].Name
	}

	return domain.RawItem{
		Title:  title,
		Body:   body,
		Author: author,
		URL:    link,
	}, true
}
