package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"NewsPipeline/internal/broadcast"
	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/infrastructure/heuristic"
	"NewsPipeline/internal/infrastructure/parser"
	"NewsPipeline/internal/infrastructure/sanitize"
	"NewsPipeline/internal/infrastructure/storage"
	"NewsPipeline/internal/logging"
	"NewsPipeline/internal/observability"
	"NewsPipeline/internal/scanner"
	"NewsPipeline/internal/transport/httpapi"
	"NewsPipeline/internal/usecase"
)

type staticWorkspaces map[string]domain.Workspace

func (w staticWorkspaces) Workspace(_ context.Context, id string) (domain.Workspace, error) {
	ws, ok := w[id]
	if !ok {
		return domain.Workspace{}, domain.ErrNotFound
	}
	return ws, nil
}

func (w staticWorkspaces) Workspaces(context.Context) ([]domain.Workspace, error) {
	out := make([]domain.Workspace, 0, len(w))
	for _, ws := range w {
		out = append(out, ws)
	}
	return out, nil
}

type testAPI struct {
	srv   *httptest.Server
	orch  *usecase.Orchestrator
	store *storage.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()

	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ws := domain.Workspace{
		ID:             "alpha",
		Enabled:        true,
		TargetLanguage: "en",
		Sources: []domain.Source{{
			Workspace: "alpha",
			Name:      "desk",
			Kind:      domain.SourceStatic,
			IsActive:  true,
			Items: []domain.RawItem{
				{Title: "Library opens", Body: "Readers welcome from Monday."},
				{Title: "Quarterly report", Body: "Auditors found a policy breach that requires review."},
			},
		}},
	}
	require.NoError(t, store.SyncWorkspace(ctx, ws))
	workspaces := staticWorkspaces{"alpha": ws}

	hub := broadcast.NewHub(32)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, logger)
	source := parser.NewStrategySource(scanner.NewRegistry(parser.StaticScanner{}), logger)
	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{Store: store, Broker: hub, Logger: logger})
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Sanitizer:  sanitize.NewSanitizer(),
		Store:      store,
		Translator: heuristic.NewAdapter("en", logger),
		Detector:   heuristic.Detector{},
		Classifier: heuristic.Classifier{},
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Store:      store,
		Workspaces: workspaces,
		Pipeline:   pipeline,
		Broker:     hub,
		Metrics:    metrics,
		Logger:     logger,
	})

	server := httpapi.New(httpapi.Deps{
		Runs:       orch,
		Moderation: usecase.NewModerationService(store, hub, sanitize.NewSanitizer(), logger),
		Dashboard:  usecase.NewDashboardService(store, workspaces, 10),
		Workspaces: workspaces,
		Hub:        hub,
		Gatherer:   reg,
		Logger:     logger,
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		srv.Close()
		orch.Wait()
	})
	return &testAPI{srv: srv, orch: orch, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (a *testAPI) runPipeline(t *testing.T) {
	t.Helper()
	_, _, err := a.orch.RunNow(context.Background(), "alpha")
	require.NoError(t, err)
}

func (a *testAPI) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.srv.URL, "http") + path
	conn, err := websocket.Dial(url, "", a.srv.URL)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receiveJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var msg map[string]any
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	api.runPipeline(t)
	resp, err := http.Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `newspipeline_pipeline_runs_total{status="success",workspace="alpha"} 1`)
}

func TestTriggerAndListRuns(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(t, http.MethodPost, "/api/workspaces/missing/pipeline/trigger", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, run := api.do(t, http.MethodPost, "/api/workspaces/alpha/pipeline/trigger", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "queued", run["status"])
	assert.NotEmpty(t, run["task_id"])
	api.orch.Wait()

	code, body := api.do(t, http.MethodGet, "/api/workspaces/alpha/pipeline/runs?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	runs := body["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].(map[string]any)["status"])

	code, _ = api.do(t, http.MethodGet, "/api/workspaces/alpha/pipeline/runs?limit=abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = api.do(t, http.MethodGet, "/api/workspaces/missing/pipeline/runs", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t)
	api.runPipeline(t)

	code, body := api.do(t, http.MethodGet, "/api/workspaces/alpha/dashboard", "")
	require.Equal(t, http.StatusOK, code)
	counts := body["counts"].(map[string]any)
	assert.Equal(t, 1.0, counts["sources"])
	assert.Equal(t, 1.0, counts["articles"])
	assert.Equal(t, 1.0, counts["pending_moderation"])
	assert.Len(t, body["runs"], 1)

	code, _ = api.do(t, http.MethodGet, "/api/workspaces/missing/dashboard", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestModerationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.runPipeline(t)

	code, body := api.do(t, http.MethodGet, "/api/moderation/queue", "")
	require.Equal(t, http.StatusOK, code)
	requests := body["requests"].([]any)
	require.Len(t, requests, 1)
	request := requests[0].(map[string]any)
	assert.Equal(t, "quarterly-report", request["reference"])
	id := int64(request["id"].(float64))
	path := "/api/moderation/requests/" + jsonNumber(id)

	code, body = api.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", body["status"])

	code, _ = api.do(t, http.MethodGet, "/api/moderation/requests/9999", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = api.do(t, http.MethodGet, "/api/moderation/requests/abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = api.do(t, http.MethodPost, path+"/decision", `{"decision":"maybe"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = api.do(t, http.MethodPost, path+"/decision", `{"decision":"approved","actor":"ann","reason":"ok"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "approved", body["decision"])
	assert.Equal(t, "ann", body["decided_by"])

	code, _ = api.do(t, http.MethodPost, path+"/decision", `{"decision":"rejected"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, body = api.do(t, http.MethodPost, "/api/moderation/requests/bulk-decision", `{"decision":"rejected","request_ids":[9998,9999]}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["message"], "9998")

	code, _ = api.do(t, http.MethodPost, "/api/moderation/requests/bulk-decision", `{"decision":"rejected","request_ids":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body = api.do(t, http.MethodGet, "/api/moderation/history?status=approved&actor=ann", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["decisions"], 1)
	assert.Equal(t, 50.0, body["limit"])

	code, _ = api.do(t, http.MethodGet, "/api/moderation/history?limit=500", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestStatusStream(t *testing.T) {
	api := newTestAPI(t)
	conn := api.dial(t, "/api/workspaces/alpha/pipeline/status")

	snapshot := receiveJSON(t, conn)
	assert.Equal(t, "snapshot", snapshot["event"])
	assert.Equal(t, "alpha", snapshot["workspace"])
	assert.Empty(t, snapshot["runs"])

	code, _ := api.do(t, http.MethodPost, "/api/workspaces/alpha/pipeline/trigger", "")
	require.Equal(t, http.StatusAccepted, code)

	var statuses []string
	for n := 0; n < 3; n++ {
		msg := receiveJSON(t, conn)
		assert.Equal(t, "update", msg["event"])
		statuses = append(statuses, msg["run"].(map[string]any)["status"].(string))
	}
	assert.Equal(t, []string{"queued", "running", "success"}, statuses)
}

func TestNotificationStream(t *testing.T) {
	api := newTestAPI(t)
	conn := api.dial(t, "/api/moderation/notifications")

	ack := receiveJSON(t, conn)
	assert.Equal(t, "moderation.connected", ack["type"])

	api.runPipeline(t)
	created := receiveJSON(t, conn)
	assert.Equal(t, "moderation.created", created["type"])
	request := created["request"].(map[string]any)
	id := int64(request["id"].(float64))

	code, _ := api.do(t, http.MethodPost, "/api/moderation/requests/bulk-decision",
		`{"decision":"approved","request_ids":[`+jsonNumber(id)+`,`+jsonNumber(id)+`]}`)
	require.Equal(t, http.StatusOK, code)

	decision := receiveJSON(t, conn)
	assert.Equal(t, "moderation.decision", decision["type"])
	bulk := receiveJSON(t, conn)
	assert.Equal(t, "moderation.bulk_decision", bulk["type"])
	assert.Equal(t, "approved", bulk["decision"])
	assert.Len(t, bulk["decisions"], 1)
}

func jsonNumber(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}
