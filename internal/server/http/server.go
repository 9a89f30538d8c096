// Package http adapts the engine's typed orchestrator methods to the
// REST surface in §6.4. It is a thin translation layer: every handler
// decodes its request, calls straight into internal/orchestrator or
// one of the components it owns, and encodes the result. No business
// logic lives here. The teacher's daemon speaks a Unix-socket
// JSON-RPC protocol rather than HTTP; this package keeps the same
// "encode/decode at the edge, delegate everything else" shape but
// targets the stdlib http.ServeMux this spec calls for, since nothing
// in the retrieval pack imports a third-party router.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/orchestrator"
	"github.com/katanaquant/ragengine/internal/query"
)

// Server wires every REST endpoint to the orchestrator's AppState.
type Server struct {
	state  *orchestrator.AppState
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds the REST surface over state.
func New(state *orchestrator.AppState, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{state: state, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("POST /index", s.handleIndex)
	s.mux.HandleFunc("POST /indexing/pause", s.handleIndexingPause)
	s.mux.HandleFunc("POST /indexing/resume", s.handleIndexingResume)
	s.mux.HandleFunc("POST /indexing/priority/{path}", s.handleIndexingPriority)
	s.mux.HandleFunc("GET /indexing/status", s.handleIndexingStatus)
	s.mux.HandleFunc("GET /queue/jobs", s.handleQueueJobs)
	s.mux.HandleFunc("GET /documents", s.handleDocuments)
	s.mux.HandleFunc("GET /document/{filename}", s.handleDocument)
	s.mux.HandleFunc("DELETE /document/{path}", s.handleDeleteDocument)
	s.mux.HandleFunc("POST /api/maintenance/reindex-orphaned-files", s.handleReindexOrphaned)
	s.mux.HandleFunc("POST /api/maintenance/reindex-path", s.handleReindexPath)
	s.mux.HandleFunc("POST /api/maintenance/rebuild-fts", s.handleRebuildFTS)
	s.mux.HandleFunc("POST /api/maintenance/rebuild-hnsw", s.handleRebuildHNSW)
	s.mux.HandleFunc("POST /api/security/scan", s.handleSecurityScanStart)
	s.mux.HandleFunc("GET /api/security/scan/{job_id}", s.handleSecurityScanStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("encode response failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}

// --- /query ---

type queryRequest struct {
	Text      string  `json:"text"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
	UseHybrid *bool   `json:"use_hybrid"`
}

type queryResponse struct {
	Results      []query.Result `json:"results"`
	TotalResults int            `json:"total_results"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	useHybrid := true
	if req.UseHybrid != nil {
		useHybrid = *req.UseHybrid
	}

	results, err := s.state.Query.Run(r.Context(), query.Request{
		Text: req.Text, TopK: req.TopK, Threshold: req.Threshold, UseHybrid: useHybrid,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, queryResponse{Results: results, TotalResults: len(results)})
}

// --- /index and queue control ---

type indexRequest struct {
	ForceReindex bool `json:"force_reindex"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	docs, err := s.state.Backend.QueryDocumentsWithChunks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, doc := range docs {
		s.state.IndexPath(doc.FilePath, domain.PriorityNormal, req.ForceReindex)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIndexingPause(w http.ResponseWriter, r *http.Request) {
	s.state.Queue.Pause()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleIndexingResume(w http.ResponseWriter, r *http.Request) {
	s.state.Queue.Resume()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleIndexingPriority(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	force := r.URL.Query().Get("force") == "true"
	s.state.IndexPath(path, domain.PriorityUrgent, force)
	w.WriteHeader(http.StatusOK)
}

type indexingStatusResponse struct {
	QueueSize     int  `json:"queue_size"`
	Paused        bool `json:"paused"`
	WorkerRunning bool `json:"worker_running"`
}

func (s *Server) handleIndexingStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, indexingStatusResponse{
		QueueSize:     s.state.Queue.Size(),
		Paused:        s.state.Queue.IsPaused(),
		WorkerRunning: s.state.Queue.InFlight() > 0,
	})
}

func (s *Server) handleQueueJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state.Coordinator.Stats())
}

// --- documents ---

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.state.Backend.QueryDocumentsWithChunks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	docs, err := s.state.Backend.QueryDocumentsWithChunks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, doc := range docs {
		if doc.FilePath == filename || strings.HasSuffix(doc.FilePath, "/"+filename) {
			s.writeJSON(w, http.StatusOK, doc)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "document not found")
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	result, err := s.state.Backend.DeleteDocument(r.Context(), path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.state.Query.InvalidateAll()
	if !result.Found {
		s.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// --- maintenance ---

func (s *Server) handleReindexOrphaned(w http.ResponseWriter, r *http.Request) {
	result, err := s.state.Sanitizer.Run(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type reindexPathRequest struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
}

func (s *Server) handleReindexPath(w http.ResponseWriter, r *http.Request) {
	var req reindexPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	docs, err := s.state.Backend.QueryDocumentsWithChunks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var affected []string
	for _, doc := range docs {
		if doc.FilePath == req.Path || strings.HasPrefix(doc.FilePath, strings.TrimSuffix(req.Path, "/")+"/") {
			affected = append(affected, doc.FilePath)
		}
	}

	if req.DryRun {
		s.writeJSON(w, http.StatusOK, map[string]any{"affected": affected, "dry_run": true})
		return
	}

	for _, path := range affected {
		if _, err := s.state.Backend.DeleteDocument(r.Context(), path); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.state.IndexPath(path, domain.PriorityHigh, true)
	}
	s.state.Query.InvalidateAll()
	s.writeJSON(w, http.StatusOK, map[string]any{"affected": affected, "dry_run": false})
}

type dryRunRequest struct {
	DryRun bool `json:"dry_run"`
}

func (s *Server) handleRebuildFTS(w http.ResponseWriter, r *http.Request) {
	var req dryRunRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.DryRun {
		s.writeJSON(w, http.StatusOK, map[string]any{"dry_run": true})
		return
	}
	if err := s.state.Searcher.RefreshKeywordIndex(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dry_run": false})
}

// vectorIndexPruner is satisfied only by backends that hold the ANN
// index in process (the embedded sqlite backend); the server-based
// backend delegates index maintenance to pgvector itself, so a type
// assertion keeps this operation out of the store.Backend contract.
type vectorIndexPruner interface {
	PruneOrphanVectors(ctx context.Context) (int, error)
}

func (s *Server) handleRebuildHNSW(w http.ResponseWriter, r *http.Request) {
	var req dryRunRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	pruner, ok := s.state.Backend.(vectorIndexPruner)
	if !ok {
		s.writeError(w, http.StatusNotImplemented, "backend does not maintain an in-process ANN index")
		return
	}
	if req.DryRun {
		s.writeJSON(w, http.StatusOK, map[string]any{"dry_run": true})
		return
	}
	pruned, err := pruner.PruneOrphanVectors(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"pruned": pruned, "dry_run": false})
}

// --- security scan ---

func (s *Server) handleSecurityScanStart(w http.ResponseWriter, r *http.Request) {
	if s.state.Scanner == nil {
		s.writeError(w, http.StatusNotImplemented, "security scanning is not configured")
		return
	}
	jobID := s.state.Scanner.Start(r.Context())
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleSecurityScanStatus(w http.ResponseWriter, r *http.Request) {
	if s.state.Scanner == nil {
		s.writeError(w, http.StatusNotImplemented, "security scanning is not configured")
		return
	}
	jobID := r.PathValue("job_id")
	snap, ok := s.state.Scanner.Snapshot(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown job id")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// --- health ---

type healthResponse struct {
	Status             string `json:"status"`
	IndexedDocuments   int64  `json:"indexed_documents"`
	TotalChunks        int64  `json:"total_chunks"`
	IndexingInProgress bool   `json:"indexing_in_progress"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.state.Backend.GetStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		IndexedDocuments:   stats.IndexedDocuments,
		TotalChunks:        stats.TotalChunks,
		IndexingInProgress: s.state.Queue.InFlight() > 0,
	})
}
