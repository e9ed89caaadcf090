package usecase

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

const (
	// MaxReferenceLength bounds slugs and record references.
	MaxReferenceLength = 255
	summaryLength      = 280
	untitledArticle    = "Untitled article"
)

// Slugify lower-cases value, collapses every run of non-alphanumerics into a single
// dash and trims dashes at the edges. An empty result becomes a random "article-<hex>" slug.
func Slugify(value string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	slug := b.String()
	if slug == "" {
		slug = "article-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return truncateRunes(slug, MaxReferenceLength)
}

// NormalizeItems sanitizes raw items and derives slugs and summaries.
func NormalizeItems(workspace string, raws []domain.RawItem, sanitizer ports.Sanitizer) []domain.ProcessedItem {
	items := make([]domain.ProcessedItem, 0, len(raws))
	for _, raw := range raws {
		items = append(items, NormalizeItem(workspace, raw, sanitizer))
	}
	return items
}

// NormalizeItem converts one raw item.
func NormalizeItem(workspace string, raw domain.RawItem, sanitizer ports.Sanitizer) domain.ProcessedItem {
	clean := func(s string) string {
		if sanitizer != nil {
			s = sanitizer.Sanitize(s)
		}
		return strings.TrimSpace(s)
	}

	title := clean(raw.Title)
	if title == "" {
		title = untitledArticle
	}
	body := clean(raw.Body)

	summary := clean(truncateRunes(body, summaryLength))
	if summary == "" {
		summary = title
	}

	return domain.ProcessedItem{
		Workspace: workspace,
		Slug:      Slugify(title),
		Title:     title,
		Summary:   summary,
		Body:      body,
		Author:    clean(raw.Author),
	}
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range value {
		if count == limit {
			return value[:i]
		}
		count++
	}
	return value
}
