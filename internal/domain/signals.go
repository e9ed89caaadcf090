package domain

// DedupReason explains why an item was flagged as duplicate.
type DedupReason string

const (
	DedupNone       DedupReason = ""
	DedupWithinRun  DedupReason = "duplicate-within-run"
	DedupHistorical DedupReason = "historical-duplicate"
)

// Status reasons stored on processing records.
const (
	ReasonDuplicate          = "duplicate"
	ReasonFakeDetection      = "fake_detection"
	ReasonRequiresModeration = "requires_moderation"
)

// Outcome is the routing decision for an item.
type Outcome string

const (
	OutcomePublish  Outcome = "publish"
	OutcomeModerate Outcome = "moderate"
	OutcomeReject   Outcome = "reject"
)

// DeduplicationResult is the output of the fingerprint check.
type DeduplicationResult struct {
	IsDuplicate      bool        `json:"is_duplicate"`
	Reason           DedupReason `json:"reason,omitempty"`
	MatchedReference string      `json:"matched_reference,omitempty"`
	MatchedRecordID  int64       `json:"matched_record_id,omitempty"`
	RecordReference  string      `json:"record_reference"`
}

// TranslationResult carries the adapted copy of an item.
type TranslationResult struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Body     string `json:"body"`
	Language string `json:"language"`
	Skipped  bool   `json:"skipped"`
}

// ForgeryResult is the verdict of the forgery detector.
type ForgeryResult struct {
	IsFake     bool    `json:"is_fake"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Skipped    bool    `json:"skipped"`
}

// ClassificationResult is the risk assessment of an item.
type ClassificationResult struct {
	Score              float64  `json:"score"`
	Summary            string   `json:"summary"`
	Flags              []string `json:"flags"`
	RequiresModeration bool     `json:"requires_moderation"`
}

// ProcessingState is attached to an item once the router has persisted it.
type ProcessingState struct {
	Action    Outcome `json:"action"`
	Reason    string  `json:"reason,omitempty"`
	RecordID  int64   `json:"record_id"`
	Reference string  `json:"reference"`
}

// PipelineItem accumulates stage outputs as an item moves through a run.
type PipelineItem struct {
	ProcessedItem
	Fingerprint    string
	Deduplication  DeduplicationResult
	Translation    *TranslationResult
	Forgery        *ForgeryResult
	Classification *ClassificationResult
	Processing     *ProcessingState
}

// Reference returns the record reference used for persistence and moderation.
func (p PipelineItem) Reference() string {
	if p.Processing != nil && p.Processing.Reference != "" {
		return p.Processing.Reference
	}
	if p.Deduplication.RecordReference != "" {
		return p.Deduplication.RecordReference
	}
	return p.Slug
}

// Action returns the routed outcome, defaulting to publish when unset.
func (p PipelineItem) Action() Outcome {
	if p.Processing == nil || p.Processing.Action == "" {
		return OutcomePublish
	}
	return p.Processing.Action
}

// Content returns the translated title, summary and body with fallback to the originals.
func (p PipelineItem) Content() (title, summary, body string) {
	title, summary, body = p.Title, p.Summary, p.Body
	if p.Translation == nil {
		return title, summary, body
	}
	if p.Translation.Title != "" {
		title = p.Translation.Title
	}
	if p.Translation.Summary != "" {
		summary = p.Translation.Summary
	}
	if p.Translation.Body != "" {
		body = p.Translation.Body
	}
	return title, summary, body
}
