package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/ports"
	"NewsPipeline/internal/usecase"
)

func routedItem(slug string, action domain.Outcome) domain.PipelineItem {
	return domain.PipelineItem{
		ProcessedItem: domain.ProcessedItem{
			Workspace: "alpha",
			Slug:      slug,
			Title:     "Title " + slug,
			Summary:   "Summary " + slug,
		},
		Classification: &domain.ClassificationResult{Score: 0.9, Summary: "Flagged for review: policy", Flags: []string{"policy"}},
		Processing:     &domain.ProcessingState{Action: action, Reference: slug},
	}
}

func TestDispatchRetriesFailingChannel(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@a", "@b"))
	e.sender.failTimes("@b", 1)

	res, err := e.dispatcher.Dispatch(context.Background(), e.ws, []domain.PipelineItem{routedItem("story", domain.OutcomePublish)})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Channels)
	assert.Equal(t, 2, e.sender.Attempts("@b"))
	assert.Len(t, e.sender.Sent("@b"), 1)
	// without the ledger the healthy channel receives the message again on retry
	assert.Len(t, e.sender.Sent("@a"), 2)
	// only the final pass is reported
	assert.Equal(t, 2, res.Delivered)

	var warned bool
	for _, a := range e.alerts.Events() {
		if a.Severity == ports.SeverityWarning && a.Message == "delivery failed for @b: chat @b unreachable" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestDispatchSurfacesFailureAfterRetries(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@a", "@b"))
	e.sender.failTimes("@b", -1)

	res, err := e.dispatcher.Dispatch(context.Background(), e.ws, []domain.PipelineItem{routedItem("story", domain.OutcomePublish)})
	require.Error(t, err)

	var derr *usecase.DeliveryError
	require.True(t, errors.As(err, &derr))
	require.Len(t, derr.Failures, 1)
	assert.Equal(t, "@b", derr.Failures[0].ChatID)
	assert.Equal(t, "@b: chat @b unreachable", err.Error())

	assert.Equal(t, e.ws.RetryAttempts+1, e.sender.Attempts("@b"))
	assert.Len(t, e.sender.Sent("@a"), e.ws.RetryAttempts+1)
	assert.Equal(t, 1, res.Delivered)
}

func TestDispatchLedgerSkipsDeliveredChannels(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@a", "@b"))
	e.sender.failTimes("@b", 1)
	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{
		Store:  e.store,
		Sender: e.sender,
		Logger: logging.Discard(),
		Ledger: true,
	})

	res, err := dispatcher.Dispatch(context.Background(), e.ws, []domain.PipelineItem{routedItem("story", domain.OutcomePublish)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Len(t, e.sender.Sent("@a"), 1)
	assert.Len(t, e.sender.Sent("@b"), 1)

	done, err := e.store.Delivered(context.Background(), "alpha", "story", "@b")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestDispatchModerationIsEnqueuedOnce(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@a", "@b"))
	e.sender.failTimes("@b", 1)
	items := []domain.PipelineItem{
		routedItem("story", domain.OutcomePublish),
		routedItem("review", domain.OutcomeModerate),
		routedItem("spam", domain.OutcomeReject),
	}

	res, err := e.dispatcher.Dispatch(context.Background(), e.ws, items)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Moderated)

	pending, err := e.store.PendingModeration(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "review", pending[0].Reference)
	assert.Equal(t, "Title review", pending[0].ContentTitle)
	assert.Equal(t, "Summary review", pending[0].ContentExcerpt)
	assert.Equal(t, []string{"policy"}, pending[0].Analysis.Flags)

	assert.Len(t, e.broker.Events(usecase.ModerationTopic), 1)
	for _, text := range e.sender.Sent("@a") {
		assert.Contains(t, text, "Title story")
	}
}

func TestDispatchWithoutChannels(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha"))

	res, err := e.dispatcher.Dispatch(context.Background(), e.ws, []domain.PipelineItem{routedItem("story", domain.OutcomePublish)})
	require.NoError(t, err)
	assert.Zero(t, res.Channels)
	assert.Zero(t, res.Delivered)
}

func TestDispatchSenderDisabled(t *testing.T) {
	e := newEnv(t, testWorkspace("alpha", "@a"))
	e.sender.disabled = true

	res, err := e.dispatcher.Dispatch(context.Background(), e.ws, []domain.PipelineItem{
		routedItem("story", domain.OutcomePublish),
		routedItem("review", domain.OutcomeModerate),
	})
	require.NoError(t, err)
	assert.Zero(t, res.Delivered)
	assert.Equal(t, 1, res.Moderated)
	assert.Zero(t, e.sender.Attempts("@a"))
}
