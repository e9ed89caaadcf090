package domain

import (
	"fmt"
	"strings"
	"time"
)

// ModerationStatus is the lifecycle state of a moderation request.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// DefaultModerator is recorded when a decision arrives without an actor.
const DefaultModerator = "console"

// ParseDecision validates a decision value coming from an operator.
func ParseDecision(value string) (ModerationStatus, error) {
	switch status := ModerationStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case ModerationApproved, ModerationRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: decision must be approved or rejected, got %q", ErrInvalid, value)
	}
}

// ParseModerationStatus accepts any known status, used by history filters.
func ParseModerationStatus(value string) (ModerationStatus, error) {
	switch status := ModerationStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown moderation status %q", ErrInvalid, value)
	}
}

// AIAnalysis is the classifier snapshot captured when an item was queued.
type AIAnalysis struct {
	Score   float64  `json:"score"`
	Summary string   `json:"summary"`
	Flags   []string `json:"flags"`
}

// ModerationRequest holds an item awaiting a human decision.
type ModerationRequest struct {
	ID             int64            `json:"id"`
	Workspace      string           `json:"workspace"`
	Reference      string           `json:"reference"`
	Status         ModerationStatus `json:"status"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	ContentTitle   string           `json:"content_title"`
	ContentExcerpt string           `json:"content_excerpt"`
	Analysis       AIAnalysis       `json:"ai_analysis"`
}

// Pending reports whether the request can still be decided.
func (r ModerationRequest) Pending() bool {
	return r.Status == ModerationPending
}

// ModerationDecision is an append-only verdict on a request.
type ModerationDecision struct {
	ID        int64            `json:"id"`
	RequestID int64            `json:"request_id"`
	Decision  ModerationStatus `json:"decision"`
	DecidedBy string           `json:"decided_by"`
	Reason    string           `json:"reason,omitempty"`
	DecidedAt time.Time        `json:"decided_at"`
}

// HistoryFilter narrows the decision history listing.
type HistoryFilter struct {
	Status    ModerationStatus
	Workspace string
	Actor     string
	Limit     int
	Offset    int
}
