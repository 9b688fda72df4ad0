package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"aegis/config"
	"aegis/core"
	"aegis/correlate"
	"aegis/notify"
	"aegis/report"
	"aegis/storage"
	"aegis/ticket"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testAPI bundles the API under test with the stores and mock notifier
// backing it, so tests can seed data and inspect side effects directly.
type testAPI struct {
	api      *API
	config   *config.Config
	events   *storage.SQLiteEventStorage
	rules    *storage.SQLiteRuleStorage
	alerts   *storage.SQLiteAlertStorage
	analysts *storage.SQLiteAnalystStorage
	tickets  *ticket.Service
	notifier *notify.MockNotifier
	engine   *correlate.Engine
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.API.RateLimit.RequestsPerSecond = 1000
	cfg.API.RateLimit.Burst = 1000
	cfg.API.AllowedOrigins = []string{"http://localhost:3000"}
	return cfg
}

// setupTestAPI builds a full API over an in-memory database, with a real
// correlation engine wired in so ingestion exercises the rule evaluation
// path. mutate, when non-nil, adjusts the config before the API is built.
func setupTestAPI(t *testing.T, mutate func(cfg *config.Config)) *testAPI {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	sqlite, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	events := storage.NewSQLiteEventStorage(sqlite, logger)
	rules := storage.NewSQLiteRuleStorage(sqlite, logger)
	alerts := storage.NewSQLiteAlertStorage(sqlite, logger)
	analysts := storage.NewSQLiteAnalystStorage(sqlite, logger)
	ticketStore := storage.NewSQLiteTicketStorage(sqlite, logger)

	notifier := notify.NewMockNotifier()
	ticketSvc := ticket.NewService(ticketStore, notifier, logger)
	reporter := report.NewReporter(events, ticketStore, logger)

	eventCh := make(chan *core.LogEvent)
	engine := correlate.NewEngine(eventCh, events, rules, alerts, notifier, correlate.EngineConfig{}, logger)
	require.NoError(t, engine.ReloadRules())

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	api := NewAPI(events, rules, alerts, analysts, ticketSvc, reporter, engine, engine, cfg, logger)
	t.Cleanup(func() { close(api.stopCh) })

	return &testAPI{
		api:      api,
		config:   cfg,
		events:   events,
		rules:    rules,
		alerts:   alerts,
		analysts: analysts,
		tickets:  ticketSvc,
		notifier: notifier,
		engine:   engine,
	}
}

// do runs one request through the router and returns the recorder.
func (ta *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	ta.api.Handler().ServeHTTP(w, req)
	return w
}

// decode unmarshals a JSON response body into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// seedRule inserts an enabled rule and refreshes the engine snapshot.
func (ta *testAPI) seedRule(t *testing.T, keyword string, threshold int, interval time.Duration, severity core.Severity) *core.CorrelationRule {
	t.Helper()

	rule := &core.CorrelationRule{
		RuleName:  "test " + keyword,
		Keyword:   keyword,
		Threshold: threshold,
		Interval:  interval,
		Severity:  severity,
		Enabled:   true,
	}
	require.NoError(t, ta.rules.CreateRule(rule))
	require.NoError(t, ta.engine.ReloadRules())
	return rule
}

// seedTicket creates a ticket through the service layer.
func (ta *testAPI) seedTicket(t *testing.T, alertID string, severity core.Severity) *core.Ticket {
	t.Helper()

	tk, err := ta.tickets.Create(alertID, severity, "client@example.com", "", "")
	require.NoError(t, err)
	return tk
}

// seedAnalyst registers one analyst.
func (ta *testAPI) seedAnalyst(t *testing.T, level core.AnalystLevel, email string) *core.Analyst {
	t.Helper()

	analyst := &core.Analyst{Level: level, Email: email}
	require.NoError(t, ta.analysts.CreateAnalyst(analyst))
	return analyst
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "unexpected status, body: %s", w.Body.String())
}
