package correlate

import (
	"testing"
	"time"

	"aegis/core"
	"aegis/notify"
	"aegis/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type engineFixture struct {
	engine   *Engine
	events   *storage.SQLiteEventStorage
	rules    *storage.SQLiteRuleStorage
	alerts   *storage.SQLiteAlertStorage
	notifier *notify.MockNotifier
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	s, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	f := &engineFixture{
		events:   storage.NewSQLiteEventStorage(s, logger),
		rules:    storage.NewSQLiteRuleStorage(s, logger),
		alerts:   storage.NewSQLiteAlertStorage(s, logger),
		notifier: notify.NewMockNotifier(),
	}
	f.engine = NewEngine(nil, f.events, f.rules, f.alerts, f.notifier, EngineConfig{}, logger)
	return f
}

func (f *engineFixture) addRule(t *testing.T, rule *core.CorrelationRule) {
	t.Helper()
	require.NoError(t, f.rules.CreateRule(rule))
	require.NoError(t, f.engine.ReloadRules())
}

func (f *engineFixture) process(t *testing.T, alertID, agent, description string, level int, ts time.Time) {
	t.Helper()
	f.engine.Process(&core.LogEvent{
		AlertID:     alertID,
		Level:       level,
		Agent:       agent,
		Description: description,
		Timestamp:   ts,
	})
}

// waitFor polls until cond is true or the deadline passes. Notifications are
// dispatched asynchronously, so tests wait instead of sleeping.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met before deadline")
}

func TestEngineEmitsAlertAtThreshold(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &core.CorrelationRule{
		RuleName:  "brute-force",
		Keyword:   "authentication failure",
		Threshold: 3,
		Interval:  5 * time.Minute,
		Severity:  core.SeverityHigh,
		Enabled:   true,
	})

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.process(t, "a-1", "agent-7", "authentication failure for root", 5, base)
	f.process(t, "a-2", "agent-7", "Authentication Failure for admin", 5, base.Add(2*time.Minute))

	alerts, err := f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts, "no alert below threshold")

	f.process(t, "a-3", "agent-7", "sshd: authentication failure", 5, base.Add(4*time.Minute))

	alerts, err = f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "brute-force", alerts[0].CorrelationType)
	assert.Equal(t, []string{"a-1", "a-2", "a-3"}, alerts[0].RelatedAlerts)
	assert.Equal(t, core.SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "agent-7", alerts[0].AgentID)

	waitFor(t, func() bool { return f.notifier.AlertCount() == 1 })
}

func TestEngineIgnoresNonMatchingEvents(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &core.CorrelationRule{
		RuleName:  "brute-force",
		Keyword:   "authentication failure",
		Threshold: 1,
		Interval:  time.Minute,
		Severity:  core.SeverityHigh,
		Enabled:   true,
	})

	f.process(t, "a-1", "web-01", "session opened for user root", 3, time.Now().UTC())

	alerts, err := f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngineSkipsDisabledRules(t *testing.T) {
	f := newEngineFixture(t)
	f.addRule(t, &core.CorrelationRule{
		RuleName:  "disabled",
		Keyword:   "authentication failure",
		Threshold: 1,
		Interval:  time.Minute,
		Severity:  core.SeverityHigh,
		Enabled:   false,
	})

	f.process(t, "a-1", "web-01", "authentication failure", 5, time.Now().UTC())

	alerts, err := f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEnginePersistsUnstoredEvents(t *testing.T) {
	f := newEngineFixture(t)

	f.process(t, "a-1", "web-01", "anything", 4, time.Now().UTC())

	_, total, err := f.events.SearchEvents(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestEngineNotifiesCriticalEvents(t *testing.T) {
	f := newEngineFixture(t)

	f.process(t, "a-1", "db-01", "rootkit detected", 12, time.Now().UTC())

	waitFor(t, func() bool { return f.notifier.CriticalEventCount() == 1 })

	alerts, err := f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts, "critical event notification is not a correlated alert")
}

func TestEngineReloadDropsEditedRuleWindow(t *testing.T) {
	f := newEngineFixture(t)
	rule := &core.CorrelationRule{
		RuleName:  "brute-force",
		Keyword:   "authentication failure",
		Threshold: 3,
		Interval:  5 * time.Minute,
		Severity:  core.SeverityHigh,
		Enabled:   true,
	}
	f.addRule(t, rule)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.process(t, "a-1", "web-01", "authentication failure", 5, base)
	f.process(t, "a-2", "web-01", "authentication failure", 5, base.Add(time.Minute))

	// Lowering the threshold must not fire against the pre-edit buffer.
	rule.Threshold = 2
	require.NoError(t, f.rules.UpdateRule(rule.ID, rule))
	require.NoError(t, f.engine.ReloadRules())

	f.process(t, "a-3", "web-01", "authentication failure", 5, base.Add(2*time.Minute))
	alerts, err := f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	f.process(t, "a-4", "web-01", "authentication failure", 5, base.Add(3*time.Minute))
	alerts, err = f.alerts.GetAlerts(10, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{"a-3", "a-4"}, alerts[0].RelatedAlerts)
}

func TestEngineStartStop(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	s, err := storage.NewSQLite(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	events := storage.NewSQLiteEventStorage(s, logger)
	rules := storage.NewSQLiteRuleStorage(s, logger)
	alerts := storage.NewSQLiteAlertStorage(s, logger)
	notifier := notify.NewMockNotifier()

	require.NoError(t, rules.CreateRule(&core.CorrelationRule{
		RuleName:  "burst",
		Keyword:   "failure",
		Threshold: 2,
		Interval:  time.Minute,
		Severity:  core.SeverityMedium,
		Enabled:   true,
	}))

	eventCh := make(chan *core.LogEvent, 16)
	engine := NewEngine(eventCh, events, rules, alerts, notifier, EngineConfig{WorkerCount: 2}, logger)
	require.NoError(t, engine.Start())

	base := time.Now().UTC()
	eventCh <- &core.LogEvent{AlertID: "a-1", Level: 5, Agent: "x", Description: "disk failure", Timestamp: base}
	eventCh <- &core.LogEvent{AlertID: "a-2", Level: 5, Agent: "x", Description: "disk failure", Timestamp: base.Add(time.Second)}

	waitFor(t, func() bool {
		got, err := alerts.GetAlerts(10, 0)
		return err == nil && len(got) == 1
	})

	engine.Stop()
}
