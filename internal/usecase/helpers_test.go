package usecase_test

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/heuristic"
	"NewsPipeline/internal/infrastructure/sanitize"
	"NewsPipeline/internal/infrastructure/storage"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/observability"
	"NewsPipeline/internal/usecase"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "pipeline.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type itemSource struct {
	mu    sync.Mutex
	items []domain.RawItem
	errs  []error
	calls int
}

func (s *itemSource) Collect(context.Context, domain.Workspace) ([]domain.RawItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return slices.Clone(s.items), nil
}

func (s *itemSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeSender struct {
	mu       sync.Mutex
	disabled bool
	failing  map[string]int
	attempts map[string]int
	sent     map[string][]string
}

func newSender() *fakeSender {
	return &fakeSender{failing: map[string]int{}, attempts: map[string]int{}, sent: map[string][]string{}}
}

// failTimes makes the next n sends to chatID fail; a negative n fails forever.
func (s *fakeSender) failTimes(chatID string, n int) {
	s.mu.Lock()
	s.failing[chatID] = n
	s.mu.Unlock()
}

func (s *fakeSender) Enabled() bool { return !s.disabled }

func (s *fakeSender) Send(_ context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[chatID]++
	if n := s.failing[chatID]; n != 0 {
		if n > 0 {
			s.failing[chatID] = n - 1
		}
		return fmt.Errorf("chat %s unreachable", chatID)
	}
	s.sent[chatID] = append(s.sent[chatID], text)
	return nil
}

func (s *fakeSender) Sent(chatID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent[chatID])
}

func (s *fakeSender) Attempts(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[chatID]
}

type recordingBroker struct {
	mu     sync.Mutex
	events map[string][]any
}

func newBroker() *recordingBroker {
	return &recordingBroker{events: map[string][]any{}}
}

func (b *recordingBroker) Publish(topic string, msg any) {
	b.mu.Lock()
	b.events[topic] = append(b.events[topic], msg)
	b.mu.Unlock()
}

func (b *recordingBroker) Events(topic string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events[topic])
}

type workspaceSet struct {
	mu    sync.Mutex
	items map[string]domain.Workspace
}

func newWorkspaces(list ...domain.Workspace) *workspaceSet {
	w := &workspaceSet{items: map[string]domain.Workspace{}}
	for _, ws := range list {
		w.items[ws.ID] = ws
	}
	return w
}

func (w *workspaceSet) Workspace(_ context.Context, id string) (domain.Workspace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws, ok := w.items[id]
	if !ok {
		return domain.Workspace{}, fmt.Errorf("workspace %q: %w", id, domain.ErrNotFound)
	}
	return ws, nil
}

func (w *workspaceSet) Workspaces(context.Context) ([]domain.Workspace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.Workspace, 0, len(w.items))
	for _, ws := range w.items {
		out = append(out, ws)
	}
	slices.SortFunc(out, func(a, b domain.Workspace) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func testWorkspace(id string, chatIDs ...string) domain.Workspace {
	ws := domain.Workspace{
		ID:              id,
		Enabled:         true,
		TargetLanguage:  "en",
		RetryAttempts:   2,
		DeliveryEnabled: true,
	}
	for _, chatID := range chatIDs {
		ws.Channels = append(ws.Channels, domain.DeliveryChannel{
			Workspace: id,
			Name:      chatID,
			ChatID:    chatID,
			IsActive:  true,
		})
	}
	return ws
}

type env struct {
	ws         domain.Workspace
	store      *storage.Store
	source     *itemSource
	sender     *fakeSender
	broker     *recordingBroker
	alerts     *observability.Alerts
	dispatcher *usecase.Dispatcher
	pipeline   *usecase.Pipeline
}

func newEnv(t *testing.T, ws domain.Workspace, items ...domain.RawItem) *env {
	t.Helper()
	store := openStore(t)
	require.NoError(t, store.SyncWorkspace(context.Background(), ws))

	e := &env{
		ws:     ws,
		store:  store,
		source: &itemSource{items: items},
		sender: newSender(),
		broker: newBroker(),
		alerts: observability.NewAlerts(logging.Discard()),
	}
	e.dispatcher = usecase.NewDispatcher(usecase.DispatcherDeps{
		Store:  store,
		Sender: e.sender,
		Broker: e.broker,
		Alerts: e.alerts,
		Logger: logging.Discard(),
	})
	e.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     e.source,
		Sanitizer:  sanitize.NewSanitizer(),
		Store:      store,
		Translator: heuristic.NewAdapter("en", logging.Discard()),
		Detector:   heuristic.Detector{},
		Classifier: heuristic.Classifier{},
		Dispatcher: e.dispatcher,
		Logger:     logging.Discard(),
	})
	return e
}

func (e *env) run(t *testing.T) usecase.RunResult {
	t.Helper()
	res, err := e.pipeline.Execute(context.Background(), e.ws, usecase.MemorySeenSets{}.Open(e.ws.ID, t.Name()))
	require.NoError(t, err)
	return res
}

func (e *env) orchestrator(workspaces *workspaceSet) *usecase.Orchestrator {
	return usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:      e.store,
		Workspaces: workspaces,
		Pipeline:   e.pipeline,
		Broker:     e.broker,
		Alerts:     e.alerts,
		Logger:     logging.Discard(),
	})
}
