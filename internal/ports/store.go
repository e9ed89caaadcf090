package ports

import (
	"context"

	"NewsPipeline/internal/domain"
)

// RecordRepository persists processing audit records.
type RecordRepository interface {
	RecordByFingerprint(ctx context.Context, workspace, fingerprint string) (*domain.ProcessingRecord, error)
	RecordByReference(ctx context.Context, workspace, reference string) (*domain.ProcessingRecord, error)
	Record(ctx context.Context, id int64) (*domain.ProcessingRecord, error)
	CreateRecord(ctx context.Context, record *domain.ProcessingRecord) error
	UpdateRecord(ctx context.Context, record *domain.ProcessingRecord) error
	Records(ctx context.Context, workspace string) ([]domain.ProcessingRecord, error)
}

// ArticleRepository persists published articles.
type ArticleRepository interface {
	ArticleExists(ctx context.Context, workspace, slug string) (bool, error)
	// CreateArticle reports false when the slug already exists.
	CreateArticle(ctx context.Context, article *domain.NewsArticle) (bool, error)
	Articles(ctx context.Context, workspace string) ([]domain.NewsArticle, error)
}

// ModerationRepository persists moderation requests and decisions.
type ModerationRepository interface {
	ModerationByReference(ctx context.Context, workspace, reference string) (*domain.ModerationRequest, error)
	// CreateModerationRequest reports false when a pending request for the reference exists.
	CreateModerationRequest(ctx context.Context, request *domain.ModerationRequest) (bool, error)
	ModerationRequest(ctx context.Context, id int64) (*domain.ModerationRequest, error)
	ModerationRequests(ctx context.Context, ids []int64) ([]domain.ModerationRequest, error)
	PendingModeration(ctx context.Context) ([]domain.ModerationRequest, error)
	// ResolveModeration moves a pending request to status and reports false when it was not pending.
	ResolveModeration(ctx context.Context, id int64, status domain.ModerationStatus) (bool, error)
	CreateDecision(ctx context.Context, decision *domain.ModerationDecision) error
	DecisionHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.ModerationDecision, error)
}

// RunRepository persists pipeline runs.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.PipelineRun) error
	UpdateRun(ctx context.Context, run *domain.PipelineRun) error
	Run(ctx context.Context, id int64) (*domain.PipelineRun, error)
	RecentRuns(ctx context.Context, workspace string, limit int) ([]domain.PipelineRun, error)
	CountRuns(ctx context.Context, workspace string) (int, error)
}

// DirectoryRepository exposes the collaborator data of workspaces.
type DirectoryRepository interface {
	SyncWorkspace(ctx context.Context, workspace domain.Workspace) error
	Sources(ctx context.Context, workspace string) ([]domain.Source, error)
	Proxies(ctx context.Context, workspace string) ([]domain.Proxy, error)
	Channels(ctx context.Context, workspace string) ([]domain.DeliveryChannel, error)
	ActiveChannels(ctx context.Context, workspace string) ([]domain.DeliveryChannel, error)
}

// DeliveryLedger remembers successful channel sends.
type DeliveryLedger interface {
	Delivered(ctx context.Context, workspace, reference, chatID string) (bool, error)
	MarkDelivered(ctx context.Context, workspace, reference, chatID string) error
}

// Repository is the full query surface of the store.
type Repository interface {
	RecordRepository
	ArticleRepository
	ModerationRepository
	RunRepository
	DirectoryRepository
	DeliveryLedger
}

// Store is a Repository that can scope work to a transaction.
type Store interface {
	Repository
	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(repo Repository) error) error
}
