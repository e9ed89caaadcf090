package domain

import "time"

// RawItem is an unprocessed payload supplied by a workspace source.
type RawItem struct {
	Title  string `json:"title" yaml:"title"`
	Body   string `json:"body" yaml:"body"`
	Author string `json:"author,omitempty" yaml:"author"`
	URL    string `json:"url,omitempty" yaml:"url"`
	Source string `json:"source,omitempty" yaml:"-"`
}

// ProcessedItem is a sanitized item with a derived slug and summary.
type ProcessedItem struct {
	Workspace string
	Slug      string
	Title     string
	Summary   string
	Body      string
	Author    string
}

// NewsArticle is the published form of an item. Unique per workspace and slug.
type NewsArticle struct {
	ID          int64     `json:"id"`
	Workspace   string    `json:"workspace"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Body        string    `json:"body"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
