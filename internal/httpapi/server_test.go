package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tierd/pkg/types"
)

type mockService struct {
	status    types.StatusResponse
	ready     bool
	inferErr  error
	lastInfer types.InferRequest
	stats     map[string]types.SessionStatsResponse
	planErr   error
	deleted   []string
}

func (m *mockService) Ready() bool                                 { return m.ready }
func (m *mockService) Status(context.Context) types.StatusResponse { return m.status }
func (m *mockService) Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error) {
	m.lastInfer = req
	if m.inferErr != nil {
		return types.InferResponse{}, m.inferErr
	}
	return types.InferResponse{Answer: "df -h", TierUsed: "light", SessionID: "s1"}, nil
}
func (m *mockService) Classify(req types.ClassifyRequest) (types.ClassifyResponse, error) {
	return types.ClassifyResponse{Tier: "heavy", Rule: "forced_tier", MatchedSignals: []string{}}, nil
}
func (m *mockService) SessionStats(_ context.Context, id string) (types.SessionStatsResponse, error) {
	st, ok := m.stats[id]
	if !ok {
		return types.SessionStatsResponse{}, mockHTTPError{msg: "session not found: " + id, code: http.StatusNotFound}
	}
	return st, nil
}
func (m *mockService) DeleteSession(_ context.Context, id string) error {
	if _, ok := m.stats[id]; !ok {
		return mockHTTPError{msg: "session not found: " + id, code: http.StatusNotFound}
	}
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockService) Tasks() []types.TaskInfo {
	return []types.TaskInfo{{Type: "disk_check", Description: "Check disk space usage for a path"}}
}
func (m *mockService) PlanTask(typ string, params map[string]any) (types.TaskPlanResponse, error) {
	if m.planErr != nil {
		return types.TaskPlanResponse{}, m.planErr
	}
	return types.TaskPlanResponse{Type: typ, Parameters: params, Commands: []string{"df -h"}}, nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "operational", CurrentTier: "heavy"}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.CurrentTier != "heavy" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "starting") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestInferOK(t *testing.T) {
	svc := &mockService{}
	w := postJSON(NewMux(svc), "/infer", `{"query":"Welcher Befehl zeigt die Festplattenbelegung an?","tier_hint":"heavy","skip_resource_check":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.InferResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Answer != "df -h" || body.SessionID != "s1" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if svc.lastInfer.TierHint != "heavy" || !svc.lastInfer.SkipResourceCheck || svc.lastInfer.ContextEnabled != nil {
		t.Fatalf("request not decoded: %+v", svc.lastInfer)
	}
}

func TestInferBadJSON(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/infer", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferHTTPErrorMapping(t *testing.T) {
	svc := &mockService{inferErr: mockHTTPError{msg: "too busy", code: http.StatusTooManyRequests}}
	w := postJSON(NewMux(svc), "/infer", `{"query":"hallo welt"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Code != http.StatusTooManyRequests || body.Error != "too busy" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestInferGenericErrorMaps500(t *testing.T) {
	w := postJSON(NewMux(&mockService{inferErr: io.EOF}), "/infer", `{"query":"hallo welt"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/infer", bytes.NewBufferString(`{"query":"hallo welt"}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestInferBodyTooLarge(t *testing.T) {
	big := `{"query":"` + strings.Repeat("a", (1<<20)+10) + `"}`
	w := postJSON(NewMux(&mockService{}), "/infer", big)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestInferQueryRequired(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/infer", `{"query":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing query, got %d", w.Code)
	}
}

func TestClassifyHandler(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/classify", `{"query":"Löse x + y = 10"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ClassifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Tier != "heavy" || body.Rule != "forced_tier" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSessionRoutes(t *testing.T) {
	svc := &mockService{stats: map[string]types.SessionStatsResponse{"abc": {SessionID: "abc", TotalTurns: 2}}}
	r := NewMux(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var st types.SessionStatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.TotalTurns != 2 {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "abc" {
		t.Fatalf("deleted=%v", svc.deleted)
	}
}

func TestTaskRoutes(t *testing.T) {
	r := NewMux(&mockService{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "disk_check") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	w = postJSON(r, "/tasks/disk_check/plan", `{"parameters":{"path":"/var"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var p types.TaskPlanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("json: %v", err)
	}
	if p.Type != "disk_check" || p.Parameters["path"] != "/var" {
		t.Fatalf("unexpected plan: %+v", p)
	}

	// An empty body plans with defaults.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/memory_check/plan", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}
