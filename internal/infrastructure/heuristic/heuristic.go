// Package heuristic provides the built-in content analysers used when no remote model is configured.
package heuristic

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"strings"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

var (
	fakeMarkers = []string{"fake", "deepfake", "forgery", "hoax", "synthetic"}

	flaggedKeywords = []string{
		"breach",
		"policy",
		"unsafe",
		"violence",
		"gambling",
		"explicit",
		"classified",
		"malware",
	}

	highRiskPhrases = []string{
		"requires review",
		"human review",
		"do not publish",
		"sensitive content",
	}
)

const (
	fakeConfidence      = 0.9
	authenticConfidence = 0.1
	moderationThreshold = 0.7
)

// Adapter labels content with the target language when it differs from its default language.
type Adapter struct {
	defaultLanguage string
	logger          *slog.Logger
}

var _ ports.Translator = (*Adapter)(nil)

// NewAdapter builds an adapter whose own language is defaultLanguage ("en" when blank).
func NewAdapter(defaultLanguage string, logger *slog.Logger) *Adapter {
	defaultLanguage = strings.ToLower(strings.TrimSpace(defaultLanguage))
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{defaultLanguage: defaultLanguage, logger: logger}
}

// Translate prefixes every field with "[lang] " unless lang is the adapter's own language.
func (a *Adapter) Translate(_ context.Context, title, summary, body, language string) (domain.TranslationResult, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = a.defaultLanguage
	}

	prefix := ""
	if language != a.defaultLanguage {
		prefix = "[" + language + "] "
	}
	result := domain.TranslationResult{
		Title:    strings.TrimSpace(prefix + title),
		Summary:  strings.TrimSpace(prefix + summary),
		Body:     strings.TrimSpace(prefix + body),
		Language: language,
	}

	a.logger.Debug("adapted content", "language", language, "title_length", len(result.Title), "body_length", len(result.Body))
	return result, nil
}

// Detector flags text containing counterfeit markers.
type Detector struct{}

var _ ports.ForgeryDetector = Detector{}

// Detect reports a fake when any marker occurs in text.
func (Detector) Detect(_ context.Context, text string) (domain.ForgeryResult, error) {
	normalized := strings.ToLower(text)
	for _, marker := range fakeMarkers {
		if strings.Contains(normalized, marker) {
			return domain.ForgeryResult{
				IsFake:     true,
				Confidence: fakeConfidence,
				Rationale:  "Counterfeit indicators detected",
			}, nil
		}
	}
	return domain.ForgeryResult{
		Confidence: authenticConfidence,
		Rationale:  "Content appears authentic",
	}, nil
}

// Classifier scores content by risky keywords and phrases.
type Classifier struct{}

var _ ports.Classifier = Classifier{}

// Classify scores 0.25 plus 0.1 per matched keyword, raised for high-risk phrasing.
// Any keyword match or a score of at least 0.7 requires moderation.
func (Classifier) Classify(_ context.Context, title, summary, body string) (domain.ClassificationResult, error) {
	text := strings.ToLower(title + " " + summary + " " + body)

	flags := []string{}
	for _, keyword := range flaggedKeywords {
		if strings.Contains(text, keyword) {
			flags = append(flags, keyword)
		}
	}
	slices.Sort(flags)

	score := 0.25 + 0.1*float64(len(flags))
	for _, phrase := range highRiskPhrases {
		if strings.Contains(text, phrase) {
			score = math.Max(score, 0.85)
			break
		}
	}
	if strings.Contains(text, "unsafe") || strings.Contains(text, "violence") {
		score = math.Max(score, 0.8)
	}

	requiresModeration := score >= moderationThreshold || len(flags) > 0
	summaryText := "Content auto-approved by heuristic"
	switch {
	case len(flags) > 0:
		summaryText = "Flagged for review: " + strings.Join(flags, ", ")
	case requiresModeration:
		summaryText = "Requires human review due to high-risk phrasing"
	}

	return domain.ClassificationResult{
		Score:              math.Round(math.Min(score, 1)*100) / 100,
		Summary:            summaryText,
		Flags:              flags,
		RequiresModeration: requiresModeration,
	}, nil
}
