/*
handlers.go - HTTP API handlers for the bonus allocation engine

PURPOSE:
  Exposes pools, rules, scored feeds and allocation runs via REST API.
  Handles HTTP request/response and JSON serialization, and delegates to the
  factory (parsing), the store (persistence) and the service (runs).

ENDPOINTS:
  Pools:
    GET    /api/pools                  List all pools
    POST   /api/pools                  Create or replace a pool
    GET    /api/pools/{id}             Get pool details
    POST   /api/pools/{id}/allocate    Run an allocation (?rule_id=&dry_run=)
    GET    /api/pools/{id}/runs        List runs, newest first

  Rules:
    GET    /api/rules                  Latest version of every rule
    POST   /api/rules                  Store a new version of a rule
    GET    /api/rules/{id}             Latest version (?version= for a given one)

  Scores:
    GET    /api/periods/{period}/scores  Scored feed of a period
    POST   /api/periods/{period}/scores  Import scored feed rows

  Runs:
    GET    /api/runs/{id}              Run header and results
    GET    /api/runs/{id}/summary      Run header and recomputed summary

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Service: Allocation runs (load, run, persist, write back)
  - Logger: Structured request-level logging

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert documents via factory (validation happens there)
  3. Call store or service
  4. Serialize response
  5. Map errors to status codes (statusFor)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed JSON or query parameters
  - 404: Pool, rule or run not found
  - 409: Pool does not accept allocation, duplicate run
  - 422: Well-formed input rejected by validation or by the engine
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/factory"
	"github.com/warp/bonus-engine/service"
	"github.com/warp/bonus-engine/store/sqlite"
)

// maxBodyBytes bounds request bodies. Score imports are the largest.
const maxBodyBytes = 8 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *service.Service
	Logger  *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. A nil service is built over store with
// the default engine.
func NewHandler(store *sqlite.Store, svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc == nil {
		svc = service.New(store, nil, logger)
	}
	return &Handler{
		Store:   store,
		Service: svc,
		Logger:  logger,
	}
}

// =============================================================================
// POOL ENDPOINTS
// =============================================================================

// ListPools returns all pools.
func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Store.ListPools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pools", err)
		return
	}

	dtos := make([]PoolDTO, len(pools))
	for i, p := range pools {
		dtos[i] = toPoolDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePool creates or replaces a pool. Allocation fields of an existing
// pool are kept.
func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req factory.PoolJSON
	if !decodeBody(w, r, &req) {
		return
	}

	pool, err := factory.PoolFromJSON(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid pool", err)
		return
	}
	if err := h.Store.SavePool(r.Context(), *pool); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save pool", err)
		return
	}

	saved, err := h.Store.GetPool(r.Context(), pool.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload pool", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPoolDTO(*saved))
}

// GetPool returns a single pool.
func (h *Handler) GetPool(w http.ResponseWriter, r *http.Request) {
	id := allocation.PoolID(chi.URLParam(r, "id"))

	pool, err := h.Store.GetPool(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get pool", err)
		return
	}
	writeJSON(w, http.StatusOK, toPoolDTO(*pool))
}

// Allocate runs an allocation for a pool.
// POST /api/pools/{id}/allocate?rule_id=annual&dry_run=true
func (h *Handler) Allocate(w http.ResponseWriter, r *http.Request) {
	poolID := allocation.PoolID(chi.URLParam(r, "id"))
	ruleID := r.URL.Query().Get("rule_id")
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "rule_id is required", nil)
		return
	}

	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid dry_run", err)
			return
		}
		dryRun = b
	}

	res, err := h.Service.AllocateBonusPool(r.Context(), service.AllocateRequest{
		PoolID:      poolID,
		RuleID:      allocation.RuleID(ruleID),
		DryRun:      dryRun,
		RequestedBy: r.Header.Get("X-Requested-By"),
	})
	if err != nil {
		writeError(w, statusFor(err), "Allocation failed", err)
		return
	}

	status := http.StatusCreated
	if res.DryRun {
		status = http.StatusOK
	}
	writeJSON(w, status, NewAllocateResponse(res.Run, res.Output, res.DryRun))
}

// ListRuns returns the runs of a pool, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	id := allocation.PoolID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetPool(r.Context(), id); err != nil {
		writeError(w, statusFor(err), "Failed to get pool", err)
		return
	}
	runs, err := h.Store.ListRuns(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RULE ENDPOINTS
// =============================================================================

// ListRules returns the latest version of every rule.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule validates a rule document and stores it as a new version.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req factory.RuleJSON
	if !decodeBody(w, r, &req) {
		return
	}

	rule, err := factory.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid rule configuration", err)
		return
	}

	version, err := h.Store.SaveRule(r.Context(), *rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	rule.Version = version

	h.Logger.Info("Rule saved",
		zap.String("rule_id", string(rule.ID)),
		zap.Int("version", version))
	writeJSON(w, http.StatusCreated, toRuleDTO(*rule))
}

// GetRule returns the latest version of a rule, or the one named by
// ?version=.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := allocation.RuleID(chi.URLParam(r, "id"))

	var (
		rule *allocation.AllocationRule
		err  error
	)
	if v := r.URL.Query().Get("version"); v != "" {
		version, convErr := strconv.Atoi(v)
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid version", convErr)
			return
		}
		rule, err = h.Store.GetRuleVersion(r.Context(), id, version)
	} else {
		rule, err = h.Store.GetRule(r.Context(), id)
	}
	if err != nil {
		writeError(w, statusFor(err), "Failed to get rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

// =============================================================================
// SCORE ENDPOINTS
// =============================================================================

// ImportScores adds scored rows to a period's feed. Rows for an employee
// already in the feed replace the earlier row.
func (h *Handler) ImportScores(w http.ResponseWriter, r *http.Request) {
	period := allocation.Period(chi.URLParam(r, "period"))

	var req ImportScoresRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Employees) == 0 {
		writeError(w, http.StatusBadRequest, "employees is required", nil)
		return
	}

	rows, err := factory.EmployeesFromJSON(period, req.Employees)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid score rows", err)
		return
	}
	for _, row := range rows {
		if row.Period != period {
			writeError(w, http.StatusUnprocessableEntity, "Row period does not match URL period", nil)
			return
		}
	}

	if err := h.Store.AddScores(r.Context(), period, rows); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to import scores", err)
		return
	}
	feed, err := h.Store.ScoredEmployees(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count scores", err)
		return
	}

	writeJSON(w, http.StatusCreated, ImportScoresResponse{
		Period:   string(period),
		Imported: len(rows),
		Total:    len(feed),
	})
}

// ListScores returns a period's scored feed in import order.
func (h *Handler) ListScores(w http.ResponseWriter, r *http.Request) {
	period := allocation.Period(chi.URLParam(r, "period"))

	feed, err := h.Store.ScoredEmployees(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scores", err)
		return
	}

	rows := make([]factory.EmployeeJSON, len(feed))
	for i, e := range feed {
		rows[i] = factory.EmployeeJSON{
			EmployeeID:     string(e.EmployeeID),
			Name:           e.Name,
			Period:         string(e.Period),
			FinalScore:     e.FinalScore,
			ScoreRank:      e.ScoreRank,
			PercentileRank: e.PercentileRank,
			PositionLevel:  e.PositionLevel,
			DepartmentID:   e.DepartmentID,
			BusinessLine:   e.BusinessLine,
			WorkMonths:     e.WorkMonths,
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// =============================================================================
// RUN ENDPOINTS
// =============================================================================

// GetRun returns a stored run with its results in input order.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := allocation.RunID(chi.URLParam(r, "id"))

	run, results, err := h.Store.LoadRun(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, RunDetailResponse{
		Run:     toRunDTO(*run),
		Results: toResultDTOs(results),
	})
}

// GetRunSummary returns the fairness summary of a stored run.
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	id := allocation.RunID(chi.URLParam(r, "id"))

	run, summary, err := h.Service.RunSummary(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to summarize run", err)
		return
	}
	writeJSON(w, http.StatusOK, RunSummaryResponse{
		Run:     toRunDTO(*run),
		Summary: *summary,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// statusFor maps an error from the store, factory or service to a status.
func statusFor(err error) int {
	switch {
	case allocation.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, allocation.ErrPoolNotActive), errors.Is(err, sqlite.ErrDuplicateRun):
		return http.StatusConflict
	case allocation.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
