package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/dealflow/internal/checklist"
	"github.com/fentz26/dealflow/internal/models"
	"github.com/fentz26/dealflow/internal/scheduler"
	"github.com/fentz26/dealflow/internal/telemetry"
)

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

const maxBodyBytes = 1 << 20

// Server provides the HTTP API for dealflow.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
	limiter *RateLimiter
	metrics *telemetry.Metrics
	sweeper *scheduler.Scheduler
	log     *slog.Logger
	handler http.Handler
}

// NewServer creates a new HTTP server. limiter and metrics may be nil.
func NewServer(service *Service, addr string, limiter *RateLimiter, metrics *telemetry.Metrics) *Server {
	s := &Server{
		service: service,
		addr:    addr,
		limiter: limiter,
		metrics: metrics,
		log:     slog.Default().With("component", "http"),
	}
	s.handler = s.routes()
	return s
}

// SetScheduler exposes the overdue sweeper under /sweeper.
func (s *Server) SetScheduler(sch *scheduler.Scheduler) {
	s.sweeper = sch
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("GET /templates", s.listTemplates)
	mux.HandleFunc("GET /templates/{dealType}", s.previewTemplate)

	mux.HandleFunc("POST /deals/{dealID}/checklist", s.instantiate)
	mux.HandleFunc("POST /deals/{dealID}/checklist/repair", s.repair)
	mux.HandleFunc("GET /deals/{dealID}/tasks", s.listTasks)
	mux.HandleFunc("POST /deals/{dealID}/tasks", s.createTask)
	mux.HandleFunc("GET /deals/{dealID}/progress", s.progress)
	mux.HandleFunc("GET /deals/{dealID}/workstreams", s.workstreams)
	mux.HandleFunc("GET /deals/{dealID}/overdue", s.overdue)
	mux.HandleFunc("GET /deals/{dealID}/decisions", s.decisions)

	mux.HandleFunc("GET /tasks/{id}", s.getTask)
	mux.HandleFunc("PATCH /tasks/{id}", s.editTask)
	mux.HandleFunc("DELETE /tasks/{id}", s.deleteTask)
	mux.HandleFunc("POST /tasks/{id}/status", s.transitionTask)

	mux.HandleFunc("GET /sweeper", s.sweeperStatus)
	mux.HandleFunc("POST /sweeper/run", s.runSweep)

	return s.instrument(s.limiter.Middleware(mux))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.Info("starting dealflow daemon", "addr", s.addr, "version", Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", models.ErrValidation, err)
	}
	return nil
}

// --- Health ---

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeProblem(w, r, http.StatusMethodNotAllowed, "use GET")
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// --- Templates ---

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	types := s.service.DealTypes()
	out := make([]any, 0, len(types))
	for _, dt := range types {
		p, err := s.service.PreviewTemplate(dt)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) previewTemplate(w http.ResponseWriter, r *http.Request) {
	dt, err := models.ParseDealType(r.PathValue("dealType"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	p, err := s.service.PreviewTemplate(dt)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Checklists ---

type instantiateRequest struct {
	DealType string `json:"deal_type"`
}

type createdResponse struct {
	DealID  string `json:"deal_id"`
	Created int    `json:"created"`
}

func (s *Server) readDealType(w http.ResponseWriter, r *http.Request) (models.DealType, error) {
	var req instantiateRequest
	if err := decode(w, r, &req); err != nil {
		return "", err
	}
	return models.ParseDealType(req.DealType)
}

func (s *Server) instantiate(w http.ResponseWriter, r *http.Request) {
	dealID := r.PathValue("dealID")
	dt, err := s.readDealType(w, r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	n, err := s.service.Instantiate(r.Context(), dealID, dt)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{DealID: dealID, Created: n})
}

func (s *Server) repair(w http.ResponseWriter, r *http.Request) {
	dealID := r.PathValue("dealID")
	dt, err := s.readDealType(w, r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	n, err := s.service.Repair(r.Context(), dealID, dt)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, createdResponse{DealID: dealID, Created: n})
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	var dt models.DealType
	if raw := r.URL.Query().Get("deal_type"); raw != "" {
		parsed, err := models.ParseDealType(raw)
		if err != nil {
			writeError(w, r, s.log, err)
			return
		}
		dt = parsed
	}
	p, err := s.service.Progress(r.Context(), r.PathValue("dealID"), dt)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) workstreams(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Workstreams(r.Context(), r.PathValue("dealID"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) overdue(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.Overdue(r.Context(), r.PathValue("dealID"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) decisions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeProblem(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	recs, err := s.service.Decisions(r.Context(), r.PathValue("dealID"), limit)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if recs == nil {
		recs = []models.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// --- Tasks ---

type createTaskRequest struct {
	Phase       string            `json:"phase"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Notes       string            `json:"notes"`
	URL         string            `json:"url"`
	Responsible string            `json:"responsible"`
	System      string            `json:"system"`
	Workstream  string            `json:"workstream"`
	StartDate   *time.Time        `json:"start_date"`
	DueDate     *time.Time        `json:"due_date"`
	Status      models.TaskStatus `json:"status"`
	Critical    bool              `json:"critical"`
	// Order defaults to models.OrderLast when omitted; 0 is a valid position.
	Order *int `json:"order"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}

	order := models.OrderLast
	if req.Order != nil {
		order = *req.Order
	}
	task, err := s.service.CreateTask(r.Context(), models.TaskRecord{
		DealID:      r.PathValue("dealID"),
		Phase:       req.Phase,
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		URL:         req.URL,
		Responsible: req.Responsible,
		System:      req.System,
		Workstream:  models.Workstream(req.Workstream),
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
		Status:      req.Status,
		Critical:    req.Critical,
		Order:       order,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// parseFilter reads phase, workstream, status, critical and overdue query parameters.
func parseFilter(r *http.Request) (checklist.TaskFilter, error) {
	q := r.URL.Query()
	f := checklist.TaskFilter{Phase: strings.TrimSpace(q.Get("phase"))}

	if raw := q.Get("workstream"); raw != "" {
		ws, err := models.ParseWorkstream(raw)
		if err != nil {
			return f, err
		}
		f.Workstream = ws
	}
	if raw := q.Get("status"); raw != "" {
		st := models.TaskStatus(raw)
		if !st.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", models.ErrValidation, raw)
		}
		f.Status = st
	}
	if raw := q.Get("critical"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: critical: %v", models.ErrValidation, err)
		}
		f.Critical = &b
	}
	if raw := q.Get("overdue"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: overdue: %v", models.ErrValidation, err)
		}
		f.OverdueOnly = b
	}
	return f, nil
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	tasks, err := s.service.ListTasks(r.Context(), r.PathValue("dealID"), f)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type editTaskRequest struct {
	models.TaskPatch
	Version int64 `json:"version"`
}

func (s *Server) editTask(w http.ResponseWriter, r *http.Request) {
	var req editTaskRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	task, err := s.service.EditTask(r.Context(), r.PathValue("id"), req.TaskPatch, req.Version)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type transitionRequest struct {
	Status  models.TaskStatus `json:"status"`
	Version int64             `json:"version"`
}

func (s *Server) transitionTask(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	task, err := s.service.TransitionTask(r.Context(), r.PathValue("id"), req.Status, req.Version)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sweeper ---

func (s *Server) sweeperStatus(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeProblem(w, r, http.StatusNotFound, "sweeper not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"last": s.sweeper.LastSweep()})
}

func (s *Server) runSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		writeProblem(w, r, http.StatusNotFound, "sweeper not running")
		return
	}
	res, err := s.sweeper.SweepOnce(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
