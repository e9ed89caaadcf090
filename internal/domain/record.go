package domain

import (
	"strings"
	"time"
)

const flagSeparator = " | "

// ProcessingRecord is the audit row for one reference within a workspace.
type ProcessingRecord struct {
	ID                    int64
	Workspace             string
	Reference             string
	Fingerprint           string
	Outcome               Outcome
	StatusReason          string
	DedupReason           DedupReason
	TranslationLanguage   string
	FakeDetected          bool
	FakeConfidence        float64
	ClassificationScore   float64
	ClassificationSummary string
	ClassificationFlags   []string
	Logs                  string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// JoinFlags renders flags in their stored form.
func JoinFlags(flags []string) string {
	return strings.Join(flags, flagSeparator)
}

// SplitFlags parses the stored form back into a slice.
func SplitFlags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, "|")
	flags := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			flags = append(flags, part)
		}
	}
	return flags
}
