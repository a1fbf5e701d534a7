package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tierd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Infer(ctx context.Context, req types.InferRequest) (types.InferResponse, error)
	Classify(req types.ClassifyRequest) (types.ClassifyResponse, error)
	Status(ctx context.Context) types.StatusResponse
	SessionStats(ctx context.Context, id string) (types.SessionStatsResponse, error)
	DeleteSession(ctx context.Context, id string) error
	Tasks() []types.TaskInfo
	PlanTask(typ string, params map[string]any) (types.TaskPlanResponse, error)
	Ready() bool
}

type api struct{ svc Service }

func NewMux(svc Service) http.Handler {
	a := &api{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Post("/infer", a.infer)
	r.Post("/classify", a.classify)
	r.Get("/status", a.status)
	r.Get("/sessions/{id}", a.sessionStats)
	r.Delete("/sessions/{id}", a.deleteSession)
	r.Get("/tasks", a.listTasks)
	r.Post("/tasks/{type}/plan", a.planTask)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit. An empty body is
// accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	if allowEmpty && r.ContentLength == 0 {
		return true
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// infer godoc
// @Summary      Answer a query on the routed tier
// @Description  Classifies the query, checks device headroom, invokes the selected tier (falling back to light once) and scores the answer.
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        request  body      types.InferRequest  true  "Query"
// @Success      200      {object}  types.InferResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /infer [post]
func (a *api) infer(w http.ResponseWriter, r *http.Request) {
	if inferLimiter != nil && !inferLimiter.Allow() {
		IncrementBackpressure("rate_limit")
		writeJSONError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req types.InferRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	logStart(r, lvl, "infer start", map[string]any{"session": req.SessionID, "hint": req.TierHint})

	ctx, cancel := inferContext(r)
	defer cancel()
	resp, err := a.svc.Infer(ctx, req)
	if err != nil {
		// Client went away or the server is shutting down; nobody to answer.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		code := statusFor(err)
		observeInferFailure(code)
		writeJSONError(w, code, err.Error())
		logEnd(r, lvl, "infer end", code, start, err)
		return
	}
	observeInfer(resp, start)
	writeJSON(w, http.StatusOK, resp)
	logEnd(r, lvl, "infer end", http.StatusOK, start, nil)
}

// classify godoc
// @Summary      Classify a query without answering it
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        request  body      types.ClassifyRequest  true  "Query"
// @Success      200      {object}  types.ClassifyResponse
// @Failure      400      {object}  types.ErrorResponse
// @Router       /classify [post]
func (a *api) classify(w http.ResponseWriter, r *http.Request) {
	var req types.ClassifyRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	resp, err := a.svc.Classify(req)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// status godoc
// @Summary  Router, device and session status
// @Tags     status
// @Produce  json
// @Success  200  {object}  types.StatusResponse
// @Router   /status [get]
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Status(r.Context()))
}

// sessionStats godoc
// @Summary  Conversation statistics
// @Tags     sessions
// @Produce  json
// @Param    id   path      string  true  "Session id"
// @Success  200  {object}  types.SessionStatsResponse
// @Failure  404  {object}  types.ErrorResponse
// @Router   /sessions/{id} [get]
func (a *api) sessionStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.SessionStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// deleteSession godoc
// @Summary  Drop a conversation
// @Tags     sessions
// @Param    id   path  string  true  "Session id"
// @Success  204
// @Failure  404  {object}  types.ErrorResponse
// @Router   /sessions/{id} [delete]
func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listTasks godoc
// @Summary  Registered administrative task types
// @Tags     tasks
// @Produce  json
// @Success  200  {object}  map[string][]types.TaskInfo
// @Router   /tasks [get]
func (a *api) listTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": a.svc.Tasks()})
}

// planTask godoc
// @Summary      Render the command plan of a task
// @Description  Validates parameters and returns the shell commands that would run. Nothing is executed.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        type     path      string                 true   "Task type"
// @Param        request  body      types.TaskPlanRequest  false  "Parameters"
// @Success      200      {object}  types.TaskPlanResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Router       /tasks/{type}/plan [post]
func (a *api) planTask(w http.ResponseWriter, r *http.Request) {
	var req types.TaskPlanRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	p, err := a.svc.PlanTask(chi.URLParam(r, "type"), req.Parameters)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}
