package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/heuristic"
	"NewsPipeline/internal/infrastructure/sanitize"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/usecase"
)

var (
	plainItem = domain.RawItem{
		Title:  "City opens new library",
		Body:   "<p>The downtown branch welcomes readers from Monday.</p>",
		Author: "Desk",
	}
	reviewItem = domain.RawItem{
		Title: "Quarterly report",
		Body:  "Auditors found a policy breach that requires review before release.",
	}
	fakeItem = domain.RawItem{
		Title: "Celebrity clip",
		Body:  "The clip is a deepfake produced last week.",
	}
)

func recordsByReference(t *testing.T, e *env) map[string]domain.ProcessingRecord {
	t.Helper()
	records, err := e.store.Records(context.Background(), e.ws.ID)
	require.NoError(t, err)
	out := make(map[string]domain.ProcessingRecord, len(records))
	for _, r := range records {
		out[r.Reference] = r
	}
	return out
}

func TestPipelineRoutesItems(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"), plainItem, reviewItem, fakeItem)

	res := e.run(t)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 1, res.Moderated)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.FakeDetected)
	assert.Equal(t, 0, res.Duplicates)

	records := recordsByReference(t, e)
	require.Len(t, records, 3)
	assert.Equal(t, domain.OutcomePublish, records["city-opens-new-library"].Outcome)
	assert.Equal(t, domain.OutcomeModerate, records["quarterly-report"].Outcome)
	assert.Equal(t, domain.ReasonRequiresModeration, records["quarterly-report"].StatusReason)
	assert.Equal(t, []string{"breach", "policy"}, records["quarterly-report"].ClassificationFlags)
	assert.Equal(t, domain.OutcomeReject, records["celebrity-clip"].Outcome)
	assert.Equal(t, domain.ReasonFakeDetection, records["celebrity-clip"].StatusReason)
	assert.True(t, records["celebrity-clip"].FakeDetected)

	articles, err := e.store.Articles(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "city-opens-new-library", articles[0].Slug)
	assert.Equal(t, "The downtown branch welcomes readers from Monday.", articles[0].Body)

	sent := e.sender.Sent("@news")
	require.Len(t, sent, 1)
	assert.Equal(t, "City opens new library\n\nThe downtown branch welcomes readers from Monday.\n\n— Desk", sent[0])
}

func TestPipelineIsIdempotent(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"), plainItem, reviewItem, fakeItem)
	ctx := context.Background()

	first := e.run(t)
	require.Equal(t, 1, first.Published)

	second, err := e.pipeline.Execute(ctx, e.ws, usecase.MemorySeenSets{}.Open("alpha", "second"))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Published)
	assert.Equal(t, 0, second.Delivered)
	assert.Equal(t, 0, second.Moderated)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, 3, second.Rejected)

	records := recordsByReference(t, e)
	require.Len(t, records, 3)
	for ref, record := range records {
		assert.Equal(t, domain.OutcomeReject, record.Outcome, ref)
		assert.Equal(t, domain.DedupHistorical, record.DedupReason, ref)
	}

	articles, err := e.store.Articles(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, articles, 1)

	pending, err := e.store.PendingModeration(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Len(t, e.sender.Sent("@news"), 1)
}

func TestPipelineWithinRunDuplicate(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"), plainItem, plainItem)

	res := e.run(t)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Delivered)

	records, err := e.store.Records(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, second := records[0], records[1]
	if first.Reference != "city-opens-new-library" {
		first, second = second, first
	}
	assert.Equal(t, domain.OutcomePublish, first.Outcome)
	assert.Equal(t, domain.OutcomeReject, second.Outcome)
	assert.Equal(t, domain.DedupWithinRun, second.DedupReason)
	assert.Equal(t, string(domain.DedupWithinRun), second.StatusReason)
	assert.Equal(t, "city-opens-new-library::"+first.Fingerprint[:12], second.Reference)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestPipelineReferencesStayBounded(t *testing.T) {
	long := domain.RawItem{Title: strings.Repeat("headline ", 80), Body: "same body"}
	symbols := domain.RawItem{Title: "!!! ???", Body: "only punctuation in the title"}
	untitled := domain.RawItem{Body: "no title at all"}
	e := newEnv(t, testWorkspace("alpha"), long, long, symbols, untitled)

	e.run(t)

	records, err := e.store.Records(context.Background(), "alpha")
	require.NoError(t, err)
	require.Len(t, records, 4)

	var refs []string
	for _, r := range records {
		assert.NotEmpty(t, r.Reference)
		assert.LessOrEqual(t, len([]rune(r.Reference)), usecase.MaxReferenceLength)
		refs = append(refs, r.Reference)
	}
	assert.Contains(t, refs, "untitled-article")

	var random bool
	for _, ref := range refs {
		if strings.HasPrefix(ref, "article-") {
			random = true
		}
	}
	assert.True(t, random, "expected a generated slug in %v", refs)
}

func TestPipelineForgeryOutranksModeration(t *testing.T) {
	item := domain.RawItem{
		Title: "Violence footage",
		Body:  "Experts say the violence footage is a hoax and requires review.",
	}
	e := newEnv(t, testWorkspace("alpha", "@news"), item)

	res := e.run(t)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 0, res.Moderated)

	records := recordsByReference(t, e)
	record := records["violence-footage"]
	assert.Equal(t, domain.OutcomeReject, record.Outcome)
	assert.Equal(t, domain.ReasonFakeDetection, record.StatusReason)
	assert.GreaterOrEqual(t, record.ClassificationScore, 0.8)

	pending, err := e.store.PendingModeration(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, e.sender.Sent("@news"))
}

func TestPipelineQueuesModeration(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"), reviewItem)

	res := e.run(t)
	assert.Equal(t, 1, res.Moderated)
	assert.Empty(t, e.sender.Sent("@news"))

	pending, err := e.store.PendingModeration(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	request := pending[0]
	assert.Equal(t, "alpha", request.Workspace)
	assert.Equal(t, "quarterly-report", request.Reference)
	assert.Equal(t, domain.ModerationPending, request.Status)
	assert.Equal(t, "Quarterly report", request.ContentTitle)
	assert.Equal(t, []string{"breach", "policy"}, request.Analysis.Flags)
	assert.Equal(t, 0.85, request.Analysis.Score)

	events := e.broker.Events(usecase.ModerationTopic)
	require.Len(t, events, 1)
	created, ok := events[0].(usecase.ModerationCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, usecase.EventModerationCreated, created.Type)
	assert.Equal(t, request.ID, created.Request.ID)

	alerts := e.alerts.Events()
	require.NotEmpty(t, alerts)
	assert.Equal(t, "content queued for moderation: quarterly-report", alerts[0].Message)
}

func TestPipelineSkipsAnalysisForDuplicates(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	processed := usecase.NormalizeItems("alpha", []domain.RawItem{plainItem, plainItem}, sanitize.NewSanitizer())

	items, err := usecase.NewDeduplicator(store).Deduplicate(ctx, "alpha", processed, usecase.MemorySeenSets{}.Open("alpha", "run"))
	require.NoError(t, err)
	items, translated, err := usecase.Translate(ctx, heuristic.NewAdapter("en", logging.Discard()), items, "de")
	require.NoError(t, err)
	items, fakes, err := usecase.DetectForgery(ctx, heuristic.Detector{}, items)
	require.NoError(t, err)

	assert.Equal(t, 1, translated)
	assert.Equal(t, 0, fakes)
	require.Len(t, items, 2)

	assert.False(t, items[0].Deduplication.IsDuplicate)
	assert.False(t, items[0].Translation.Skipped)
	assert.Equal(t, "[de] City opens new library", items[0].Translation.Title)

	dup := items[1]
	assert.True(t, dup.Deduplication.IsDuplicate)
	assert.True(t, dup.Translation.Skipped)
	assert.True(t, dup.Forgery.Skipped)
	assert.Equal(t, "City opens new library", dup.Translation.Title)
	assert.Equal(t, "de", dup.Translation.Language)
}

func TestPipelineDisabledWorkspace(t *testing.T) {
	ws := testWorkspace("alpha", "@news")
	ws.Enabled = false
	e := newEnv(t, ws, plainItem)

	res := e.run(t)
	assert.True(t, res.Disabled)
	assert.Equal(t, "workspace disabled", res.Summary())
	assert.Zero(t, e.source.Calls())
}

func TestPipelineEmptySourceShortCircuits(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@news"))

	res := e.run(t)
	assert.Zero(t, res.Processed)
	assert.Equal(t, 1, e.source.Calls())

	records, err := e.store.Records(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPipelineSourceError(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha"), plainItem)
	boom := errors.New("feed unreachable")
	e.source.errs = []error{boom}

	_, err := e.pipeline.Execute(context.Background(), e.ws, usecase.MemorySeenSets{}.Open("alpha", "run"))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "parse news")
}

func TestPipelineDeliveryDisabledStillModerates(t *testing.T) {
	ws := testWorkspace("alpha", "@news")
	ws.DeliveryEnabled = false
	e := newEnv(t, ws, plainItem, reviewItem)

	res := e.run(t)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 1, res.Moderated)
	assert.Zero(t, e.sender.Attempts("@news"))
}
