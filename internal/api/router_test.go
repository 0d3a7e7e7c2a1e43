package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/costcoplus/offline-relay/internal/api"
	"github.com/costcoplus/offline-relay/internal/connectivity"
	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/metrics"
	"github.com/costcoplus/offline-relay/internal/provider"
	"github.com/costcoplus/offline-relay/internal/queue"
	"github.com/costcoplus/offline-relay/internal/service"
	"github.com/costcoplus/offline-relay/internal/storage"
	"github.com/costcoplus/offline-relay/internal/worker"
)

type server struct {
	h     http.Handler
	q     *queue.Store
	probe *connectivity.HTTPProbe

	mu      sync.Mutex
	execErr error
	sent    []domain.QueuedMutation
}

func newServer(t *testing.T) *server {
	t.Helper()
	s := &server{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s.q = queue.New(storage.NewMemory(), queue.DefaultKey, m.QueueHooks())
	exec := provider.ExecutorFunc(func(_ context.Context, mut domain.QueuedMutation) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.execErr != nil {
			return s.execErr
		}
		s.sent = append(s.sent, mut)
		return nil
	})

	// probe never polls in these tests; state comes from Report
	s.probe = connectivity.NewHTTPProbe("http://127.0.0.1:0", "/", time.Hour, time.Second, zap.NewNop())
	s.probe.Report(true)

	d := worker.NewDrainer(s.q, exec, worker.DrainerConfig{Online: s.probe.CachedOnline}, zap.NewNop(), m.WorkerHooks())
	svc := service.NewMutationService(s.q, exec, d, s.probe.CachedOnline, zap.NewNop())

	s.h = api.NewRouter(api.Deps{Service: svc, Queue: s.q, Drainer: d, Probe: s.probe, Metrics: reg}, zap.NewNop())
	return s
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

const postBody = `{"kind":"create_post","payload":{"warehouseId":5,"content":"在庫あります","postTypeId":2}}`

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestSubmit_Online(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/mutations", postBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var res domain.SubmitResult
	decode(t, rec, &res)
	if !res.Sent {
		t.Fatalf("expected sent, got %+v", res)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected correlation id header")
	}
}

func TestSubmit_OfflineThenDrain(t *testing.T) {
	s := newServer(t)
	s.probe.Report(false)

	rec := s.do(t, http.MethodPost, "/api/v1/mutations", postBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/queue", "")
	var list struct {
		Count int                     `json:"count"`
		Items []domain.QueuedMutation `json:"items"`
	}
	decode(t, rec, &list)
	if list.Count != 1 || len(list.Items) != 1 || list.Items[0].Kind != domain.KindCreatePost {
		t.Fatalf("expected one queued post, got %+v", list)
	}

	// offline: manual drain is skipped
	rec = s.do(t, http.MethodPost, "/api/v1/queue/drain", "")
	var report worker.DrainReport
	decode(t, rec, &report)
	if !report.Skipped || report.Reason != "offline" {
		t.Fatalf("expected offline skip, got %+v", report)
	}

	if rec := s.do(t, http.MethodPost, "/api/v1/connectivity", `{"online":true}`); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/queue/drain", "")
	report = worker.DrainReport{}
	decode(t, rec, &report)
	if report.Sent != 1 {
		t.Fatalf("expected one sent, got %+v", report)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/queue", "")
	decode(t, rec, &list)
	if list.Count != 0 {
		t.Fatalf("expected empty queue, got %d", list.Count)
	}
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		execErr error
		want    int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"unknown kind", `{"kind":"delete_post","payload":{}}`, nil, http.StatusUnprocessableEntity},
		{"missing postId", `{"kind":"create_comment","payload":{"comment":"hi"}}`, nil, http.StatusUnprocessableEntity},
		{"remote rejected", postBody, domain.ErrPermanentRemote, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t)
			s.execErr = tt.execErr
			rec := s.do(t, http.MethodPost, "/api/v1/mutations", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestQueue_GetDiscardRetryClear(t *testing.T) {
	s := newServer(t)
	s.probe.Report(false)

	submit := func() string {
		rec := s.do(t, http.MethodPost, "/api/v1/mutations", postBody)
		var res domain.SubmitResult
		decode(t, rec, &res)
		return res.Mutation.ID
	}
	first := submit()
	second := submit()

	if rec := s.do(t, http.MethodGet, "/api/v1/queue/"+first, ""); rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/queue/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		if rec := s.do(t, http.MethodDelete, "/api/v1/queue/"+first, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("discard %d: expected 204, got %d", i, rec.Code)
		}
	}

	s.execErr = domain.ErrTransientRemote
	if rec := s.do(t, http.MethodPost, "/api/v1/queue/"+second+"/retry", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("retry transient: expected 502, got %d", rec.Code)
	}

	s.execErr = nil
	rec := s.do(t, http.MethodPost, "/api/v1/queue/"+second+"/retry", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d", rec.Code)
	}
	var out map[string]string
	decode(t, rec, &out)
	if out["outcome"] != string(worker.OutcomeSent) {
		t.Fatalf("expected sent outcome, got %v", out)
	}

	submit()
	if rec := s.do(t, http.MethodDelete, "/api/v1/queue", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("clear: expected 204, got %d", rec.Code)
	}
	if n, _ := s.q.Len(context.Background()); n != 0 {
		t.Fatalf("expected empty queue after clear, got %d", n)
	}
}

func TestConnectivity(t *testing.T) {
	s := newServer(t)

	if rec := s.do(t, http.MethodPost, "/api/v1/connectivity", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without online field, got %d", rec.Code)
	}
	s.do(t, http.MethodPost, "/api/v1/connectivity", `{"online":false}`)

	rec := s.do(t, http.MethodGet, "/api/v1/connectivity", "")
	var state map[string]bool
	decode(t, rec, &state)
	if state["online"] || !state["known"] {
		t.Fatalf("expected known offline state, got %v", state)
	}
}

func TestSystemEndpoints(t *testing.T) {
	s := newServer(t)
	s.probe.Report(false)
	s.do(t, http.MethodPost, "/api/v1/mutations", postBody)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		if rec := s.do(t, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	rec := s.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "offline_queue_depth 1") {
		t.Fatalf("expected queue depth gauge in scrape output")
	}

	rec = s.do(t, http.MethodGet, "/api/v1/metrics", "")
	var snap struct {
		QueueDepth int    `json:"queue_depth"`
		DrainState string `json:"drain_state"`
	}
	decode(t, rec, &snap)
	if snap.QueueDepth != 1 || snap.DrainState != "idle" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
