// Package api serves the coordinator's status and control surface over HTTP/JSON.
package api

//go:generate mockgen -source=server.go -destination=coordinator_mock.go -package=api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/stats"
	"github.com/scanomatic/som/coordinator"
	"github.com/scanomatic/som/domain"
)

// UnknownScanner is the refusal for a scanner query that matches nothing.
const UnknownScanner = "Unknown scanner or query"

// bodies are small JSON documents
const maxBodyBytes = 1 << 20

// Coordinator is what the API needs from *coordinator.Coordinator.
type Coordinator interface {
	ServerStatus() coordinator.ServerStatus
	Resources() []domain.Resource
	FreeResources() []domain.Resource
	FindResources(query string) []domain.Resource
	ActiveJobs() []domain.Job
	Queue() []domain.Job
	Job(id string) (domain.Job, error)
	Submit(req coordinator.SubmitRequest) (domain.Job, error)
	RequestStop(id string) coordinator.StopResult
	ReportProgress(id string, progress, runTime float64) error
	Pause(id string) error
	Resume(id string) error
	Finish(id string, runErr error) error
	RemoveFromQueue(id string) error
	FlushQueue() int
	SetScannerPower(jobID, resourceID string, on bool) error
	AcquireLock(key, holder string) bool
	ReleaseLock(key, holder string) bool
}

// History reads a job's recorded events. The journal implements it.
type History interface {
	History(ctx context.Context, jobID string, limit int) ([]coordinator.Event, error)
}

type Server struct {
	coord   Coordinator
	history History
	stat    stats.StatsReceiver
}

// NewServer serves coord. history may be nil, in which case job history is always 404.
func NewServer(coord Coordinator, history History, stat stats.StatsReceiver) *Server {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Server{coord: coord, history: history, stat: stat}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Get("/health", healthHandler)
	r.Get("/admin/metrics.json", s.statsHandler)

	r.Route("/status", func(r chi.Router) {
		r.Get("/server", s.handleServerStatus)
		r.Get("/scanners", s.handleScanners)
		r.Get("/scanners/{query}", s.handleScannerQuery)
		r.Get("/jobs", s.handleJobs)
		r.Get("/queue", s.handleQueue)
	})

	r.Post("/jobs", s.handleSubmit)
	r.Route("/jobs/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetJob)
		r.Get("/history", s.handleHistory)
		r.Post("/stop", s.handleStop)
		r.Post("/progress", s.handleProgress)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/finish", s.handleFinish)
	})

	r.Delete("/queue", s.handleFlushQueue)
	r.Delete("/queue/{id}", s.handleRemove)
	r.Post("/scanners/{id}/power", s.handlePower)

	r.Post("/locks/acquire/*", s.handleAcquireLock)
	r.Post("/locks/release/*", s.handleReleaseLock)
	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	pretty := r.URL.Query().Get("pretty") == "true"
	if _, err := io.Copy(w, bytes.NewBuffer(s.stat.Render(pretty))); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		latency := s.stat.Latency(stats.APIRequestLatency_ms).Time()
		defer func() {
			latency.Stop()
			s.stat.Counter(stats.APIRequestCounter).Inc(1)
			log.WithFields(log.Fields{
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    ww.Status(),
				"bytes":     ww.BytesWritten(),
				"elapsed":   time.Since(start),
				"requestID": middleware.GetReqID(r.Context()),
			}).Debug("request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.ServerStatus())
}

func (s *Server) handleScanners(w http.ResponseWriter, _ *http.Request) {
	resp := ScannersResponse{Scanners: []ScannerStatus{}}
	for _, res := range s.coord.Resources() {
		resp.Scanners = append(resp.Scanners, scannerStatus(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScannerQuery(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if query == "free" {
		resp := FreeScannersResponse{Scanners: map[string]string{}}
		for _, res := range s.coord.FreeResources() {
			resp.Scanners[res.ID] = res.Name
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	found := s.coord.FindResources(query)
	if len(found) == 0 {
		writeJSON(w, http.StatusBadRequest, Result{Reason: UnknownScanner})
		return
	}
	writeJSON(w, http.StatusOK, ScannerResponse{Scanner: scannerStatus(found[0])})
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	resp := JobsResponse{Jobs: []JobStatus{}}
	for _, j := range s.coord.ActiveJobs() {
		resp.Jobs = append(resp.Jobs, jobStatus(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	resp := QueueResponse{Queue: []QueueEntry{}}
	for _, j := range s.coord.Queue() {
		entry, err := queueEntry(j)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		resp.Queue = append(resp.Queue, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := domain.ParseJobType(req.Type)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	content, err := domain.DecodeContent(t, req.Content)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	job, err := s.coord.Submit(coordinator.SubmitRequest{
		Type:      t,
		Content:   content,
		DependsOn: req.DependsOn,
		Label:     req.Label,
	})
	if err != nil {
		// unknown scanner or upstream named in the body
		status := statusFor(err)
		if status == http.StatusNotFound {
			status = http.StatusBadRequest
		}
		writeErr(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, Result{Success: true, ID: job.ID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.coord.Job(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	view, err := jobView(job)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.history == nil {
		writeErr(w, http.StatusNotFound, domain.NewNotFoundError("no journal configured"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeErr(w, http.StatusBadRequest, domain.NewInvalidRequestError("invalid limit: %s", raw))
			return
		}
		limit = v
	}
	events, err := s.history.History(r.Context(), id, limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if len(events) == 0 {
		writeErr(w, http.StatusNotFound, domain.NewNotFoundError("no history for job %s", id))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Events: events})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	res := s.coord.RequestStop(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, Result{Success: res.Accepted, Reason: res.Reason})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, s.coord.ReportProgress(chi.URLParam(r, "id"), req.Progress, req.RunTime))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.coord.Pause(chi.URLParam(r, "id")))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.coord.Resume(chi.URLParam(r, "id")))
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req FinishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var runErr error
	if !req.Success {
		reason := req.Reason
		if reason == "" {
			reason = "worker reported failure"
		}
		runErr = errors.New(reason)
	}
	writeResult(w, s.coord.Finish(chi.URLParam(r, "id"), runErr))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.coord.RemoveFromQueue(chi.URLParam(r, "id")))
}

func (s *Server) handleFlushQueue(w http.ResponseWriter, _ *http.Request) {
	n := s.coord.FlushQueue()
	writeJSON(w, http.StatusOK, Result{Success: true, Removed: &n})
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request) {
	var req PowerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeResult(w, s.coord.SetScannerPower(req.JobID, chi.URLParam(r, "id"), req.Power))
}

func (s *Server) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	ok := s.coord.AcquireLock(chi.URLParam(r, "*"), r.URL.Query().Get("owner"))
	writeJSON(w, http.StatusOK, LockResult{Success: ok})
}

func (s *Server) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	ok := s.coord.ReleaseLock(chi.URLParam(r, "*"), r.URL.Query().Get("owner"))
	writeJSON(w, http.StatusOK, LockResult{Success: ok})
}

// statusFor maps the coordinator's error categories to HTTP. Refusals of a well-formed request
// are 409 and carry the reason in the body.
func statusFor(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsInvalidRequest(err):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, domain.NewInvalidRequestError("bad request body: %v", err))
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, Result{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("writing response")
	}
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Result{Reason: err.Error()})
}
