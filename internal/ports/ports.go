package ports

import (
	"context"
	"time"

	"NewsPipeline/internal/domain"
)

// ItemSource pulls raw items from every active source of a workspace.
type ItemSource interface {
	Collect(ctx context.Context, workspace domain.Workspace) ([]domain.RawItem, error)
}

// WorkspaceProvider resolves workspace configuration. Implementations load it fresh on each call.
type WorkspaceProvider interface {
	Workspace(ctx context.Context, id string) (domain.Workspace, error)
	Workspaces(ctx context.Context) ([]domain.Workspace, error)
}

// Sanitizer strips markup from untrusted text.
type Sanitizer interface {
	Sanitize(value string) string
}

// Translator adapts item content into a target language.
type Translator interface {
	Translate(ctx context.Context, title, summary, body, language string) (domain.TranslationResult, error)
}

// ForgeryDetector flags fabricated content.
type ForgeryDetector interface {
	Detect(ctx context.Context, text string) (domain.ForgeryResult, error)
}

// Classifier scores content risk and decides whether a human must review it.
type Classifier interface {
	Classify(ctx context.Context, title, summary, body string) (domain.ClassificationResult, error)
}

// Sender pushes a text message to a chat destination.
type Sender interface {
	Enabled() bool
	Send(ctx context.Context, chatID, text string) error
}

// Broker publishes events to live subscribers of a topic.
type Broker interface {
	Publish(topic string, message any)
}

// Severity ranks alert importance.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alerter forwards operational alerts.
type Alerter interface {
	Alert(ctx context.Context, workspace, message string, severity Severity)
}

// RunStats are the counters reported after a successful run.
type RunStats struct {
	Published    int
	Delivered    int
	Moderated    int
	Rejected     int
	Duplicates   int
	FakeDetected int
}

// Metrics records run outcomes.
type Metrics interface {
	EnsureWorkspace(workspace string)
	RecordSuccess(workspace string, duration time.Duration, stats RunStats)
	RecordFailure(workspace string, duration time.Duration)
}

// SeenSet remembers fingerprints observed during one run.
type SeenSet interface {
	// Remember stores the fingerprint and reports whether it had been seen before.
	Remember(ctx context.Context, fingerprint string) (bool, error)
	Release(ctx context.Context) error
}

// SeenSets creates a fresh SeenSet for each run.
type SeenSets interface {
	Open(workspace, runKey string) SeenSet
}

// Scheduler controls when periodic runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
