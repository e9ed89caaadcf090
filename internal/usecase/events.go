package usecase

import "NewsPipeline/internal/domain"

// ModerationTopic carries moderation events for every workspace.
const ModerationTopic = "moderation"

// RunTopic is the broker topic for run status updates of a workspace.
func RunTopic(workspace string) string {
	return "runs:" + workspace
}

// Event types carried in the event and type fields of broker messages.
const (
	EventSnapshot            = "snapshot"
	EventUpdate              = "update"
	EventModerationConnected = "moderation.connected"
	EventModerationCreated   = "moderation.created"
	EventModerationDecision  = "moderation.decision"
	EventModerationBulk      = "moderation.bulk_decision"
)

// RunSnapshotEvent is the first message of a status stream.
type RunSnapshotEvent struct {
	Event     string               `json:"event"`
	Workspace string               `json:"workspace"`
	Runs      []domain.PipelineRun `json:"runs"`
}

// RunUpdateEvent reports a run state change.
type RunUpdateEvent struct {
	Event     string             `json:"event"`
	Workspace string             `json:"workspace"`
	Run       domain.PipelineRun `json:"run"`
}

// ModerationConnectedEvent acknowledges a new notification subscriber.
type ModerationConnectedEvent struct {
	Type string `json:"type"`
}

// ModerationCreatedEvent announces a newly queued request.
type ModerationCreatedEvent struct {
	Type    string                   `json:"type"`
	Request domain.ModerationRequest `json:"request"`
}

// ModerationDecisionEvent announces a single decision.
type ModerationDecisionEvent struct {
	Type     string                    `json:"type"`
	Request  domain.ModerationRequest  `json:"request"`
	Decision domain.ModerationDecision `json:"decision"`
}

// ModerationBulkEvent summarises a bulk decision.
type ModerationBulkEvent struct {
	Type      string                      `json:"type"`
	Decision  domain.ModerationStatus     `json:"decision"`
	Requests  []domain.ModerationRequest  `json:"requests"`
	Decisions []domain.ModerationDecision `json:"decisions"`
}
