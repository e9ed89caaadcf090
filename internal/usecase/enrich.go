package usecase

import (
	"context"
	"fmt"
	"strings"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

const (
	defaultLanguage      = "en"
	skippedDuplicateNote = "Skipped due to duplicate content"
)

// NormalizeLanguage lower-cases the language code, defaulting to English.
func NormalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return defaultLanguage
	}
	return language
}

// Translate runs the translator on every non-duplicate item. Duplicates pass through untouched
// with a skipped result. It returns the number of items actually translated.
func Translate(ctx context.Context, translator ports.Translator, items []domain.PipelineItem, language string) ([]domain.PipelineItem, int, error) {
	language = NormalizeLanguage(language)
	translated := 0
	for i := range items {
		item := &items[i]
		if item.Deduplication.IsDuplicate {
			item.Translation = &domain.TranslationResult{
				Title:    item.Title,
				Summary:  item.Summary,
				Body:     item.Body,
				Language: language,
				Skipped:  true,
			}
			continue
		}

		result, err := translator.Translate(ctx, item.Title, item.Summary, item.Body, language)
		if err != nil {
			return nil, 0, fmt.Errorf("translate %s: %w", item.Slug, err)
		}
		if result.Language == "" {
			result.Language = language
		}
		item.Translation = &result
		translated++
	}
	return items, translated, nil
}

// DetectForgery runs the detector on the translated body of every non-duplicate item.
// It returns the number of items flagged as fake.
func DetectForgery(ctx context.Context, detector ports.ForgeryDetector, items []domain.PipelineItem) ([]domain.PipelineItem, int, error) {
	fakes := 0
	for i := range items {
		item := &items[i]
		if item.Deduplication.IsDuplicate {
			item.Forgery = &domain.ForgeryResult{
				Rationale: skippedDuplicateNote,
				Skipped:   true,
			}
			continue
		}

		_, _, body := item.Content()
		result, err := detector.Detect(ctx, body)
		if err != nil {
			return nil, 0, fmt.Errorf("detect forgery %s: %w", item.Slug, err)
		}
		item.Forgery = &result
		if result.IsFake {
			fakes++
		}
	}
	return items, fakes, nil
}
