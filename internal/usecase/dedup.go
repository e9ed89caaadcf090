package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

const fingerprintPrefixLength = 12

// Fingerprint hashes the sanitized title, summary and body of an item.
func Fingerprint(title, summary, body string) string {
	sum := sha256.Sum256([]byte(title + "|" + summary + "|" + body))
	return hex.EncodeToString(sum[:])
}

// DuplicateReference derives a reference for a duplicate that has no persisted match.
// The slug is shortened so the result never exceeds MaxReferenceLength.
func DuplicateReference(slug, fingerprint string) string {
	suffix := "::" + fingerprint[:min(fingerprintPrefixLength, len(fingerprint))]
	return truncateRunes(slug, MaxReferenceLength-len(suffix)) + suffix
}

// Deduplicator flags items already persisted or already seen in the current run.
type Deduplicator struct {
	records ports.RecordRepository
}

// NewDeduplicator wires the record lookup used for historical matches.
func NewDeduplicator(records ports.RecordRepository) *Deduplicator {
	return &Deduplicator{records: records}
}

// Deduplicate annotates every item with its fingerprint and deduplication result.
// The fingerprint of every item is remembered in seen, duplicates included.
func (d *Deduplicator) Deduplicate(ctx context.Context, workspace string, items []domain.ProcessedItem, seen ports.SeenSet) ([]domain.PipelineItem, error) {
	out := make([]domain.PipelineItem, 0, len(items))
	for _, item := range items {
		fp := Fingerprint(item.Title, item.Summary, item.Body)

		matched, err := d.records.RecordByFingerprint(ctx, workspace, fp)
		if err != nil {
			return nil, fmt.Errorf("lookup fingerprint %s: %w", fp[:fingerprintPrefixLength], err)
		}

		seenInRun, err := seen.Remember(ctx, fp)
		if err != nil {
			return nil, fmt.Errorf("remember fingerprint %s: %w", fp[:fingerprintPrefixLength], err)
		}

		result := domain.DeduplicationResult{RecordReference: item.Slug}
		switch {
		case matched != nil:
			result.IsDuplicate = true
			result.Reason = domain.DedupHistorical
			result.MatchedReference = matched.Reference
			result.MatchedRecordID = matched.ID
			result.RecordReference = matched.Reference
		case seenInRun:
			result.IsDuplicate = true
			result.Reason = domain.DedupWithinRun
			result.RecordReference = DuplicateReference(item.Slug, fp)
		}

		out = append(out, domain.PipelineItem{
			ProcessedItem: item,
			Fingerprint:   fp,
			Deduplication: result,
		})
	}
	return out, nil
}

// MemorySeenSets hands out in-process seen sets.
type MemorySeenSets struct{}

// Open returns an empty set for one run.
func (MemorySeenSets) Open(workspace, runKey string) ports.SeenSet {
	return &memorySeenSet{seen: make(map[string]struct{})}
}

type memorySeenSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (s *memorySeenSet) Remember(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[fingerprint]; ok {
		return true, nil
	}
	s.seen[fingerprint] = struct{}{}
	return false, nil
}

func (s *memorySeenSet) Release(context.Context) error {
	s.mu.Lock()
	s.seen = make(map[string]struct{})
	s.mu.Unlock()
	return nil
}
