package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/bonus-engine/allocation"
	"github.com/warp/bonus-engine/api"
	"github.com/warp/bonus-engine/factory"
	"github.com/warp/bonus-engine/service"
	"github.com/warp/bonus-engine/store/sqlite"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := service.New(store, allocation.NewEngine(nil, 2), nil)
	n := 0
	svc.NewID = func() string { n++; return fmt.Sprintf("run-%d", n) }

	return api.NewRouter(api.NewHandler(store, svc, nil), []string{"http://localhost:5173"})
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seed creates pool-2025, the "annual" rule and three scored employees.
func seed(t *testing.T, srv http.Handler) {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/pools", factory.PoolJSON{
		ID: "pool-2025", Name: "FY25", Period: "2025", TotalAmount: 100000, ReserveRatio: 0.1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/rules", factory.StandardRuleJSON("annual", "Annual"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/periods/2025/scores", api.ImportScoresRequest{
		Employees: []factory.EmployeeJSON{
			{EmployeeID: "a", FinalScore: 0.7, PositionLevel: "P3", DepartmentID: "eng", WorkMonths: 24},
			{EmployeeID: "b", FinalScore: 0.6, PositionLevel: "P3", DepartmentID: "eng", WorkMonths: 24},
			{EmployeeID: "c", FinalScore: 0.5, PositionLevel: "P2", DepartmentID: "ops", WorkMonths: 24},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// POOLS
// =============================================================================

func TestPools(t *testing.T) {
	// GIVEN: An empty server
	// WHEN: Creating and reading pools
	// THEN: Amounts are rendered at two decimals and errors map to status codes

	srv := newServer(t)

	rec := do(t, srv, http.MethodPost, "/api/pools", factory.PoolJSON{
		ID: "pool-2025", Period: "2025", TotalAmount: 100000, ReserveRatio: 0.1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[api.PoolDTO](t, rec)
	assert.Equal(t, "100000.00", created.TotalAmount)
	assert.Equal(t, "90000.00", created.AvailableAmount)
	assert.Equal(t, "active", created.Status)

	rec = do(t, srv, http.MethodGet, "/api/pools/pool-2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pool-2025", decode[api.PoolDTO](t, rec).ID)

	rec = do(t, srv, http.MethodGet, "/api/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.PoolDTO](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/pools/missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/pools", "{not json").Code)

	rec = do(t, srv, http.MethodPost, "/api/pools", factory.PoolJSON{ID: "bad", Period: "2025", TotalAmount: 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Invalid pool", decode[api.ErrorResponse](t, rec).Error)
}

// =============================================================================
// RULES
// =============================================================================

func TestRules_Versioned(t *testing.T) {
	// GIVEN: A rule posted twice under the same id
	// WHEN: Reading it back
	// THEN: The latest version is returned by default and older ones on request

	srv := newServer(t)

	rec := do(t, srv, http.MethodPost, "/api/rules", factory.StandardRuleJSON("annual", "Annual"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[api.RuleDTO](t, rec).Version)

	rec = do(t, srv, http.MethodPost, "/api/rules", factory.StandardRuleJSON("annual", "Annual v2"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, decode[api.RuleDTO](t, rec).Version)

	rec = do(t, srv, http.MethodGet, "/api/rules/annual", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[api.RuleDTO](t, rec)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "Annual v2", latest.Name)
	assert.Equal(t, 0.6, latest.Config.BaseAllocationRatio)

	rec = do(t, srv, http.MethodGet, "/api/rules/annual?version=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Annual", decode[api.RuleDTO](t, rec).Name)

	rec = do(t, srv, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.RuleDTO](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/rules/missing", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/rules/annual?version=9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/rules/annual?version=x", nil).Code)
}

func TestRules_RejectsInvalid(t *testing.T) {
	srv := newServer(t)

	rec := do(t, srv, http.MethodPost, "/api/rules", factory.RuleJSON{
		ID:                         "bad",
		AllocationMethod:           "lottery",
		BaseAllocationRatio:        0.5,
		PerformanceAllocationRatio: 0.5,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/rules", factory.RuleJSON{Name: "no id"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// SCORES
// =============================================================================

func TestScores_ImportAndList(t *testing.T) {
	srv := newServer(t)
	seed(t, srv)

	// Re-importing "a" replaces its row without changing the feed size.
	rec := do(t, srv, http.MethodPost, "/api/periods/2025/scores", api.ImportScoresRequest{
		Employees: []factory.EmployeeJSON{{EmployeeID: "a", FinalScore: 0.9}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[api.ImportScoresResponse](t, rec)
	assert.Equal(t, 1, resp.Imported)
	assert.Equal(t, 3, resp.Total)

	rec = do(t, srv, http.MethodGet, "/api/periods/2025/scores", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]factory.EmployeeJSON](t, rec)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].EmployeeID)
	assert.Equal(t, 0.9, rows[0].FinalScore)

	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPost, "/api/periods/2025/scores", api.ImportScoresRequest{}).Code)

	rec = do(t, srv, http.MethodPost, "/api/periods/2025/scores", api.ImportScoresRequest{
		Employees: []factory.EmployeeJSON{{EmployeeID: "z", Period: "2024", FinalScore: 0.5}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// =============================================================================
// ALLOCATION
// =============================================================================

func TestAllocate_DryRunThenStore(t *testing.T) {
	// GIVEN: A seeded pool, rule and feed
	// WHEN: Running a dry run, then a real run
	// THEN: Only the real run is stored and the pool reflects it

	srv := newServer(t)
	seed(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/pools/pool-2025/allocate?rule_id=annual&dry_run=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dry := decode[api.AllocateResponse](t, rec)
	assert.True(t, dry.DryRun)
	assert.Len(t, dry.Results, 3)

	rec = do(t, srv, http.MethodGet, "/api/pools/pool-2025/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.RunDTO](t, rec))

	rec = do(t, srv, http.MethodPost, "/api/pools/pool-2025/allocate?rule_id=annual", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[api.AllocateResponse](t, rec)
	assert.False(t, res.DryRun)
	assert.Equal(t, "run-2", res.Run.ID)
	assert.Equal(t, 3, res.Run.AllocatedCount)
	assert.Equal(t, "90000.00", res.Run.AvailableAmount)
	assert.True(t, res.Summary.TotalAllocated.LessThanOrEqual(res.Summary.BudgetCap))

	// Results keep feed order and the amount identity.
	require.Len(t, res.Results, 3)
	assert.Equal(t, "a", res.Results[0].EmployeeID)
	assert.Equal(t, "c", res.Results[2].EmployeeID)

	rec = do(t, srv, http.MethodGet, "/api/pools/pool-2025", nil)
	pool := decode[api.PoolDTO](t, rec)
	assert.Equal(t, "allocated", pool.Status)
	assert.Equal(t, "run-2", pool.LatestRunID)
	assert.Equal(t, res.Run.AllocatedAmount, pool.AllocatedAmount)

	rec = do(t, srv, http.MethodGet, "/api/runs/run-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[api.RunDetailResponse](t, rec)
	assert.Equal(t, res.Results, detail.Results)

	rec = do(t, srv, http.MethodGet, "/api/runs/run-2/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.RunSummaryResponse](t, rec)
	assert.True(t, summary.Summary.TotalAllocated.Equal(res.Summary.TotalAllocated))
	assert.Len(t, summary.Summary.Departments, 2)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/runs/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/runs/nope/summary", nil).Code)
}

func TestAllocate_Errors(t *testing.T) {
	srv := newServer(t)
	seed(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/pools", factory.PoolJSON{
		ID: "closed", Period: "2025", TotalAmount: 1000, Status: "closed",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/pools", factory.PoolJSON{
		ID: "empty", Period: "2030", TotalAmount: 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing rule_id", "/api/pools/pool-2025/allocate", http.StatusBadRequest},
		{"bad dry_run", "/api/pools/pool-2025/allocate?rule_id=annual&dry_run=maybe", http.StatusBadRequest},
		{"unknown pool", "/api/pools/nope/allocate?rule_id=annual", http.StatusNotFound},
		{"unknown rule", "/api/pools/pool-2025/allocate?rule_id=nope", http.StatusNotFound},
		{"closed pool", "/api/pools/closed/allocate?rule_id=annual", http.StatusConflict},
		{"empty feed", "/api/pools/empty/allocate?rule_id=annual", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[api.ErrorResponse](t, rec).Error)
		})
	}

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/pools/nope/runs", nil).Code)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarios_LoadAndAllocate(t *testing.T) {
	srv := newServer(t)

	rec := do(t, srv, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]api.ScenarioDTO](t, rec)
	require.Len(t, list, 4)

	for _, s := range list {
		t.Run(s.ID, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: s.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			loaded := decode[map[string]string](t, rec)

			rec = do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
			assert.Equal(t, s.ID, decode[api.ScenarioDTO](t, rec).ID)

			path := fmt.Sprintf("/api/pools/%s/allocate?rule_id=%s&dry_run=true", loaded["pool_id"], loaded["rule_id"])
			rec = do(t, srv, http.MethodPost, path, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			res := decode[api.AllocateResponse](t, rec)
			assert.Len(t, res.Results, 12)
			assert.True(t, res.Summary.TotalAllocated.IsPositive())
		})
	}

	rec = do(t, srv, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/pools", nil)
	assert.Empty(t, decode[[]api.PoolDTO](t, rec))
	rec = do(t, srv, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
