package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/internal/pipeline"
	"go-fea-pipeline/internal/platform/logger"
	"go-fea-pipeline/internal/store"
)

const extractionsPrefix = "/api/v1/extractions/"

// RunAccepted is returned when a run is started
type RunAccepted struct {
	Message   string    `json:"message"`
	RunID     string    `json:"run_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler serves the extraction API and executes accepted runs in the
// background
type Handler struct {
	db      *store.DB
	log     *logger.Logger
	metrics *pipeline.Metrics
	ctx     context.Context

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a handler. Runs are cancelled when ctx is done.
func New(ctx context.Context, db *store.DB, log *logger.Logger, metrics *pipeline.Metrics) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		db:      db,
		log:     log,
		metrics: metrics,
		ctx:     ctx,
		active:  make(map[string]context.CancelFunc),
	}
}

// Wait blocks until every background run has finished
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) start(runID string, spec model.RunSpec) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, running := h.active[runID]; running {
		return false
	}
	ctx, cancel := context.WithCancel(h.ctx)
	h.active[runID] = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.active, runID)
			h.mu.Unlock()
			cancel()
		}()
		h.execute(ctx, runID, spec)
	}()
	return true
}

func (h *Handler) isActive(runID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.active[runID]
	return ok
}

func (h *Handler) execute(ctx context.Context, runID string, spec model.RunSpec) {
	log := h.log.With("run_id", runID)
	if err := h.db.UpdateRunStatus(runID, store.StatusRunning); err != nil {
		log.Error("failed to mark run running", "error", err)
	}

	summary, err := pipeline.RunBatch(ctx, spec, pipeline.BatchDeps{
		RunID:    runID,
		Logger:   h.log,
		Metrics:  h.metrics,
		Recorder: h.db,
	})
	status := summary.Status
	if err != nil {
		log.Error("run failed", "error", err)
		if serr := h.db.SaveRunError(runID, "", model.Failure{Kind: "run", Message: err.Error()}); serr != nil {
			log.Error("failed to record run error", "error", serr)
		}
		if len(summary.Archives) == 0 || errors.Is(err, context.Canceled) {
			status = store.StatusFailed
		}
	}
	if err := h.db.UpdateRunStatus(runID, status); err != nil {
		log.Error("failed to update run status", "status", status, "error", err)
	}
}

// runID extracts the id from /api/v1/extractions/{id}[suffix]
func runID(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, extractionsPrefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := path[len(extractionsPrefix) : len(path)-len(suffix)]
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// lookupRun writes 404/500 itself and reports whether the run exists
func (h *Handler) lookupRun(w http.ResponseWriter, id string) (store.Run, bool) {
	run, err := h.db.GetRun(id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return run, false
	}
	if err != nil {
		h.log.Error("failed to load run", "run_id", id, "error", err)
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return run, false
	}
	return run, true
}

// CreateExtraction starts a new extraction run
// @Summary Start an extraction run
// @Description Validate the run configuration, store it and extract its archives in the background
// @Tags extractions
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration"
// @Success 202 {object} RunAccepted "Run accepted"
// @Failure 400 {string} string "Invalid run configuration"
// @Failure 500 {string} string "Internal server error"
// @Router /extractions [post]
func (h *Handler) CreateExtraction(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if _, err := pipeline.ValidateRunSpec(spec); err != nil {
		http.Error(w, "Invalid run configuration: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(spec.Archives.Paths) == 0 && spec.Archives.Root == "" {
		http.Error(w, "At least one archive path or a root is required", http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	if err := h.db.SaveRun(id, spec); err != nil {
		h.log.Error("failed to save run", "error", err)
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}
	h.start(id, spec)

	writeJSON(w, http.StatusAccepted, RunAccepted{
		Message:   "Extraction started",
		RunID:     id,
		Status:    store.StatusPending,
		CreatedAt: time.Now().UTC(),
	})
}

// ListExtractions lists all runs
// @Summary List extraction runs
// @Tags extractions
// @Produce json
// @Success 200 {array} store.Run
// @Failure 500 {string} string "Internal server error"
// @Router /extractions [get]
func (h *Handler) ListExtractions(w http.ResponseWriter, r *http.Request) {
	runs, err := h.db.ListRuns()
	if err != nil {
		h.log.Error("failed to list runs", "error", err)
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetExtraction returns one run with its configuration
// @Summary Get an extraction run
// @Tags extractions
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} store.Run
// @Failure 404 {string} string "Run not found"
// @Router /extractions/{id} [get]
func (h *Handler) GetExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "")
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	run, ok := h.lookupRun(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetExtractionErrors lists warnings and failures
// @Summary List warnings and failures of a run
// @Tags extractions
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /extractions/{id}/errors [get]
func (h *Handler) GetExtractionErrors(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "/errors", "errors", func(id string) (interface{}, int, error) {
		errs, err := h.db.GetRunErrors(id)
		return errs, len(errs), err
	})
}

// GetExtractionOutputs lists exported files
// @Summary List files written by a run
// @Tags extractions
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /extractions/{id}/outputs [get]
func (h *Handler) GetExtractionOutputs(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "/outputs", "outputs", func(id string) (interface{}, int, error) {
		outs, err := h.db.GetRunOutputs(id)
		return outs, len(outs), err
	})
}

// GetExtractionSeries lists the extracted series
// @Summary List the field series extracted by a run
// @Tags extractions
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /extractions/{id}/series [get]
func (h *Handler) GetExtractionSeries(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "/series", "series", func(id string) (interface{}, int, error) {
		series, err := h.db.GetRunSeries(id)
		return series, len(series), err
	})
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request, suffix, key string, fetch func(id string) (interface{}, int, error)) {
	id, ok := runID(r.URL.Path, suffix)
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	run, ok := h.lookupRun(w, id)
	if !ok {
		return
	}
	items, count, err := fetch(id)
	if err != nil {
		h.log.Error("failed to load run "+key, "run_id", id, "error", err)
		http.Error(w, "Failed to retrieve "+key, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": id,
		"status": run.Status,
		key:      items,
		"count":  count,
	})
}

// RetryExtraction runs a finished extraction again
// @Summary Run an extraction again with its stored configuration
// @Tags extractions
// @Produce json
// @Param id path string true "Run ID"
// @Success 202 {object} RunAccepted "Retry accepted"
// @Failure 404 {string} string "Run not found"
// @Failure 409 {string} string "Run still active"
// @Router /extractions/{id}/retry [post]
func (h *Handler) RetryExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "/retry")
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	run, ok := h.lookupRun(w, id)
	if !ok {
		return
	}
	if h.isActive(id) {
		http.Error(w, "Run is still active", http.StatusConflict)
		return
	}
	if err := h.db.ClearRunResults(id); err != nil {
		h.log.Error("failed to clear run results", "run_id", id, "error", err)
		http.Error(w, "Failed to reset run", http.StatusInternalServerError)
		return
	}
	if err := h.db.UpdateRunStatus(id, store.StatusPending); err != nil {
		h.log.Error("failed to reset run status", "run_id", id, "error", err)
		http.Error(w, "Failed to reset run", http.StatusInternalServerError)
		return
	}
	if !h.start(id, run.Spec) {
		http.Error(w, "Run is still active", http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusAccepted, RunAccepted{
		Message:   "Retry started",
		RunID:     id,
		Status:    store.StatusPending,
		CreatedAt: run.CreatedAt,
	})
}

// DeleteExtraction removes a run record. Exported files are kept.
// @Summary Delete an extraction run
// @Tags extractions
// @Param id path string true "Run ID"
// @Success 204
// @Failure 404 {string} string "Run not found"
// @Failure 409 {string} string "Run still active"
// @Router /extractions/{id} [delete]
func (h *Handler) DeleteExtraction(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(r.URL.Path, "")
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if h.isActive(id) {
		http.Error(w, "Run is still active", http.StatusConflict)
		return
	}
	err := h.db.DeleteRun(id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("failed to delete run", "run_id", id, "error", err)
		http.Error(w, "Failed to delete run", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
