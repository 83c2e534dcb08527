package server

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevated-systems/greenflow/pkg/greenflow/clock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/lifecycle"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
	"github.com/elevated-systems/greenflow/pkg/greenflow/rag"
	"github.com/elevated-systems/greenflow/pkg/greenflow/rag/mock"
	"github.com/elevated-systems/greenflow/pkg/greenflow/store"
	"github.com/elevated-systems/greenflow/pkg/greenflow/types"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSystem(t *testing.T, completer rag.Completer) *System {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "greenflow.db")
	cfg.Pipeline.InputDir = filepath.Join(dir, "input")
	cfg.Pipeline.OutputFile = filepath.Join(dir, "output", "enriched.jsonl")
	cfg.Observability.MetricsEnabled = true
	cfg.Stream.Interval = 20 * time.Millisecond

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)

	capability := rag.Capability{Reason: "disabled in test"}
	if completer != nil {
		capability = rag.Capability{Completer: completer}
	}
	sys, err := newSystem(cfg, st, capability, clock.NewMockClock(testNow))
	require.NoError(t, err)
	sys.random = func() float64 { return 0.5 }
	t.Cleanup(func() { sys.Close() })
	return sys
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	return decodeBody[map[string]string](t, w)["detail"]
}

func TestCreateEvent(t *testing.T) {
	tests := []struct {
		name         string
		body         interface{}
		wantStatus   int
		wantSeverity types.Severity
		wantRisk     float64
		wantAlerts   []types.AlertType
		wantDetail   string
	}{
		{
			name:         "safe reading raises nothing",
			body:         map[string]interface{}{"source": "sensor-01", "co2_ppm": 320.0},
			wantStatus:   http.StatusCreated,
			wantSeverity: types.SeveritySafe,
			wantRisk:     0.64,
		},
		{
			name:         "danger reading at critical risk",
			body:         map[string]interface{}{"source": "sensor-02", "co2_ppm": 450.0, "location": "Delhi"},
			wantStatus:   http.StatusCreated,
			wantSeverity: types.SeverityDanger,
			wantRisk:     0.9,
			wantAlerts:   []types.AlertType{types.AlertHighCO2, types.AlertCriticalRisk},
		},
		{
			name:         "critical reading caps risk",
			body:         map[string]interface{}{"source": "sensor-03", "co2_ppm": 900.0, "timestamp": 1700000000.0},
			wantStatus:   http.StatusCreated,
			wantSeverity: types.SeverityCritical,
			wantRisk:     1.0,
			wantAlerts:   []types.AlertType{types.AlertHighCO2, types.AlertCriticalRisk},
		},
		{
			name:       "missing source",
			body:       map[string]interface{}{"co2_ppm": 400.0},
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "source is required",
		},
		{
			name:       "missing co2",
			body:       map[string]interface{}{"source": "sensor-01"},
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "co2_ppm is required",
		},
		{
			name:       "negative co2",
			body:       map[string]interface{}{"source": "sensor-01", "co2_ppm": -1.0},
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "co2_ppm must be greater than or equal to 0",
		},
		{
			name:       "co2 of the wrong type",
			body:       `{"source": "sensor-01", "co2_ppm": "high"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "co2_ppm has the wrong type: got string",
		},
		{
			name:       "malformed JSON",
			body:       `{"source": `,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newTestSystem(t, nil)
			router := sys.Router()

			w := do(t, router, http.MethodPost, "/api/v1/events", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus != http.StatusCreated {
				if tt.wantDetail != "" {
					assert.Equal(t, tt.wantDetail, detail(t, w))
				}
				events, err := sys.store.ListEvents(context.Background(), 10, 0)
				require.NoError(t, err)
				assert.Empty(t, events, "rejected readings must not be persisted")
				return
			}

			event := decodeBody[types.PersistedEvent](t, w)
			assert.Positive(t, event.ID)
			assert.Equal(t, tt.wantSeverity, event.Severity)
			assert.InDelta(t, tt.wantRisk, event.RiskScore, 1e-9)

			alerts := decodeBody[[]types.Alert](t, do(t, router, http.MethodGet, "/api/v1/alerts", nil))
			var got []types.AlertType
			for _, a := range alerts {
				assert.Equal(t, event.ID, a.EventID)
				got = append(got, a.Type)
			}
			assert.ElementsMatch(t, tt.wantAlerts, got)
		})
	}
}

func TestCreateEventDefaultsTimestamp(t *testing.T) {
	sys := newTestSystem(t, nil)

	w := do(t, sys.Router(), http.MethodPost, "/api/v1/readings",
		map[string]interface{}{"source": "sensor-01", "co2_ppm": 410.5})
	require.Equal(t, http.StatusCreated, w.Code)

	event := decodeBody[types.PersistedEvent](t, w)
	assert.Equal(t, clock.UnixSeconds(testNow), event.Timestamp)
	assert.Nil(t, event.Location)

	stored, err := sys.store.GetEvent(context.Background(), event.ID)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"source":"sensor-01","timestamp":`+jsonNumber(t, event.Timestamp)+`,"co2_ppm":410.5,"location":null}`,
		stored.RawPayload)
}

func jsonNumber(t *testing.T, f float64) string {
	data, err := json.Marshal(f)
	require.NoError(t, err)
	return string(data)
}

func TestGetEvent(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	created := decodeBody[types.PersistedEvent](t, do(t, router, http.MethodPost, "/api/v1/events",
		map[string]interface{}{"source": "sensor-01", "co2_ppm": 450.0}))

	w := do(t, router, http.MethodGet, "/api/v1/events/"+jsonNumber(t, float64(created.ID)), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decodeBody[types.PersistedEvent](t, w))

	w = do(t, router, http.MethodGet, "/api/v1/events/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event 999 not found.", detail(t, w))

	w = do(t, router, http.MethodGet, "/api/v1/events/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/events/"+jsonNumber(t, float64(created.ID))+"/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]types.Alert](t, w), 2)

	w = do(t, router, http.MethodGet, "/api/v1/events/999/alerts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEvents(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	w := do(t, router, http.MethodGet, "/api/v1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	for i, ts := range []float64{100, 300, 200} {
		w := do(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{
			"source": "sensor-0" + string(rune('1'+i)), "co2_ppm": 400.0, "timestamp": ts,
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	events := decodeBody[[]types.PersistedEvent](t, do(t, router, http.MethodGet, "/api/v1/events", nil))
	require.Len(t, events, 3)
	assert.Equal(t, []float64{300, 200, 100},
		[]float64{events[0].Timestamp, events[1].Timestamp, events[2].Timestamp})

	events = decodeBody[[]types.PersistedEvent](t, do(t, router, http.MethodGet, "/api/v1/events?limit=1&offset=1", nil))
	require.Len(t, events, 1)
	assert.Equal(t, 200.0, events[0].Timestamp)

	tests := []struct {
		query      string
		wantDetail string
	}{
		{query: "limit=0", wantDetail: "limit must be greater than or equal to 1"},
		{query: "limit=501", wantDetail: "limit must be less than or equal to 500"},
		{query: "offset=-1", wantDetail: "offset must be greater than or equal to 0"},
		{query: "limit=many", wantDetail: `invalid value "many"`},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/api/v1/events?"+tt.query, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, tt.wantDetail, detail(t, w))
		})
	}
}

func TestListAlertsUnresolved(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	do(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{"source": "s", "co2_ppm": 600.0})

	all := decodeBody[[]types.Alert](t, do(t, router, http.MethodGet, "/api/v1/alerts", nil))
	unresolved := decodeBody[[]types.Alert](t, do(t, router, http.MethodGet, "/api/v1/alerts?unresolved=true", nil))
	assert.Len(t, all, 2)
	assert.Equal(t, all, unresolved)

	w := do(t, router, http.MethodGet, "/api/v1/alerts?unresolved=maybe", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRisk(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	// No events: demo reading at the middle of [310, 480)
	resp := decodeBody[riskResponse](t, do(t, router, http.MethodGet, "/api/v1/risk", nil))
	assert.Equal(t, 395.0, resp.CO2PPM)
	assert.Equal(t, types.SeverityWarning, resp.RiskLevel)
	assert.InDelta(t, 0.79, resp.RiskScore, 1e-9)
	assert.Equal(t, 400.0, resp.Threshold)
	assert.Equal(t, riskMessages[types.SeverityWarning], resp.Message)

	do(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{"source": "s", "co2_ppm": 520.0})

	resp = decodeBody[riskResponse](t, do(t, router, http.MethodGet, "/api/v1/risk", nil))
	assert.Equal(t, 520.0, resp.CO2PPM)
	assert.Equal(t, types.SeverityCritical, resp.RiskLevel)
	assert.Equal(t, 1.0, resp.RiskScore)
	assert.Equal(t, riskMessages[types.SeverityCritical], resp.Message)
}

func TestRecommendation(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	resp := decodeBody[recommendationResponse](t, do(t, router, http.MethodGet, "/api/v1/recommendation", nil))
	assert.Equal(t, 380.0, resp.CO2Context)
	assert.Equal(t, "medium", resp.Urgency)
	assert.NotEmpty(t, resp.Actions)

	do(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{"source": "s", "co2_ppm": 455.0})

	resp = decodeBody[recommendationResponse](t, do(t, router, http.MethodGet, "/api/v1/recommendation", nil))
	assert.Equal(t, 455.0, resp.CO2Context)
	assert.Equal(t, "high", resp.Urgency)
	assert.Equal(t, recommendations[types.SeverityDanger].Title, resp.Title)
}

func TestRecommendationTableCoversEverySeverity(t *testing.T) {
	for _, s := range types.Severities {
		assert.Contains(t, recommendations, s)
		assert.Contains(t, riskMessages, s)
	}
}

func TestSummary(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	resp := decodeBody[types.Summary](t, do(t, router, http.MethodGet, "/api/v1/analytics/summary", nil))
	assert.Zero(t, resp.EventCount)
	assert.Nil(t, resp.AverageCO224h)
	assert.Nil(t, resp.Latest)

	now := clock.UnixSeconds(testNow)
	for _, r := range []struct {
		co2 float64
		ts  float64
	}{
		{400, now - 3600},
		{500, now - 60},
		{900, now - 3*24*3600}, // outside the window
	} {
		do(t, router, http.MethodPost, "/api/v1/events",
			map[string]interface{}{"source": "s", "co2_ppm": r.co2, "timestamp": r.ts})
	}

	resp = decodeBody[types.Summary](t, do(t, router, http.MethodGet, "/api/v1/analytics/summary", nil))
	assert.Equal(t, int64(3), resp.EventCount)
	require.NotNil(t, resp.AverageCO224h)
	assert.InDelta(t, 450.0, *resp.AverageCO224h, 1e-9)
	require.NotNil(t, resp.MaxRisk24h)
	assert.InDelta(t, 1.0, *resp.MaxRisk24h, 1e-9)
	require.NotNil(t, resp.Latest)
	assert.Equal(t, 500.0, resp.Latest.CO2PPM)
}

func TestQuery(t *testing.T) {
	completer := mock.New("Open the windows.")
	sys := newTestSystem(t, completer)
	require.NoError(t, sys.SeedKnowledge(context.Background()))
	router := sys.Router()

	do(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{"source": "s", "co2_ppm": 455.0})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"query": "What should I do about high CO2?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))

	answer := decodeBody[rag.Answer](t, w)
	assert.Equal(t, "Open the windows.", answer.Answer)
	assert.NotEmpty(t, answer.Sources)

	prompts := completer.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].User, "Live Sensor Reading: CO2 = 455.0 ppm")

	db, err := sql.Open("sqlite3", sys.cfg.Database.Path)
	require.NoError(t, err)
	defer db.Close()

	var requestID, logged string
	require.NoError(t, db.QueryRow(`SELECT request_id, answer FROM query_logs`).Scan(&requestID, &logged))
	assert.Equal(t, "req-123", requestID)
	assert.Equal(t, "Open the windows.", logged)
}

func TestQueryDegraded(t *testing.T) {
	tests := []struct {
		name      string
		completer rag.Completer
	}{
		{name: "no language model", completer: nil},
		{name: "language model error", completer: mock.NewWithError()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newTestSystem(t, tt.completer)
			require.NoError(t, sys.SeedKnowledge(context.Background()))

			w := do(t, sys.Router(), http.MethodPost, "/api/v1/query",
				map[string]string{"query": "Is 450 ppm dangerous?"})
			require.Equal(t, http.StatusOK, w.Code)

			answer := decodeBody[rag.Answer](t, w)
			assert.True(t, strings.HasPrefix(answer.Answer, "AI service is currently unavailable"), answer.Answer)
			assert.NotEmpty(t, answer.Sources)
		})
	}
}

func TestQueryValidation(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	tests := []struct {
		name       string
		body       interface{}
		wantDetail string
	}{
		{name: "too short", body: map[string]string{"query": "hi"}, wantDetail: "query must be at least 3 characters"},
		{name: "too long", body: map[string]string{"query": strings.Repeat("a", 2001)}, wantDetail: "query must be at most 2000 characters"},
		{name: "missing", body: map[string]string{}, wantDetail: "query is required"},
		{name: "empty body", body: "", wantDetail: "request body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/v1/query", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, tt.wantDetail, detail(t, w))
		})
	}
}

func TestHealth(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	resp := decodeBody[healthResponse](t, do(t, router, http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, sys.cfg.App.Version, resp.Version)
	assert.Equal(t, "ok", resp.Components["database"])
	assert.Equal(t, "unavailable: disabled in test", resp.Components["llm"])
	assert.Equal(t, "0 documents", resp.Components["knowledge_base"])
	assert.Equal(t, "empty", resp.Components["pipeline_output"])

	require.NoError(t, sys.store.Close())
	resp = decodeBody[healthResponse](t, do(t, router, http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, "degraded", resp.Status)
	assert.True(t, strings.HasPrefix(resp.Components["database"], "error: "))
}

func TestCORS(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORSRestrictedOrigins(t *testing.T) {
	sys := newTestSystem(t, nil)
	sys.cfg.Server.AllowedOrigins = []string{"https://allowed.example"}
	router := sys.Router()

	tests := []struct {
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{origin: "https://allowed.example", wantOrigin: "https://allowed.example", wantCode: http.StatusOK},
		{origin: "https://other.example", wantOrigin: "", wantCode: http.StatusForbidden},
		{origin: "", wantOrigin: "", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tt.wantCode, w.Code, tt.origin)
		assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"), tt.origin)
	}
}

func TestCORSExposesRequestID(t *testing.T) {
	sys := newTestSystem(t, nil)
	router := sys.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), http.CanonicalHeaderKey(requestIDHeader))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDAssigned(t *testing.T) {
	sys := newTestSystem(t, nil)
	w := do(t, sys.Router(), http.MethodGet, "/api/v1/health", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Register()
	sys := newTestSystem(t, nil)
	router := sys.Router()

	do(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{"source": "s", "co2_ppm": 600.0})

	w := do(t, router, http.MethodGet, sys.cfg.Observability.MetricsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `greenflow_readings_ingested_total{path="api"}`)
	assert.Contains(t, w.Body.String(), `greenflow_alerts_emitted_total{type="HIGH_CO2"}`)
}

func TestStreamSSEEndsOnShutdown(t *testing.T) {
	sys := newTestSystem(t, nil)
	srv := httptest.NewServer(sys.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	line := scanner.Text()
	require.True(t, strings.HasPrefix(line, "data: "), line)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
	assert.Equal(t, "live-sensor", msg["source"])

	sys.cancelStreams()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for scanner.Scan() {
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after shutdown")
	}
}

func TestTasks(t *testing.T) {
	tests := []struct {
		name             string
		restartOnFailure bool
		wantPipeline     lifecycle.RestartPolicy
	}{
		{name: "pipeline restarts", restartOnFailure: true, wantPipeline: lifecycle.RestartOnFailure},
		{name: "pipeline escalates", restartOnFailure: false, wantPipeline: lifecycle.RestartNever},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := newTestSystem(t, nil)
			sys.cfg.Pipeline.RestartOnFailure = tt.restartOnFailure

			byName := map[string]lifecycle.Task{}
			for _, task := range sys.Tasks() {
				byName[task.Name] = task
			}
			require.Len(t, byName, 3)
			assert.True(t, byName["http-server"].Critical)
			assert.Equal(t, tt.wantPipeline, byName["pipeline"].Restart)
			assert.False(t, byName["knowledge-seed"].Critical)
		})
	}
}

func TestSeedKnowledge(t *testing.T) {
	sys := newTestSystem(t, nil)
	require.NoError(t, sys.SeedKnowledge(context.Background()))
	assert.Positive(t, sys.engine.DocumentCount())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, newTestSystem(t, nil).SeedKnowledge(ctx))
}
