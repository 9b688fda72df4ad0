package correlate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"aegis/core"
	"aegis/metrics"
	"aegis/notify"
	"aegis/storage"
	"aegis/util/goroutine"

	"go.uber.org/zap"
)

// compiledRule is a rule snapshot with the keyword pre-lowered so workers do
// not re-lower it per event.
type compiledRule struct {
	core.CorrelationRule
	keywordLower string
}

func (r *compiledRule) matches(event *core.LogEvent) bool {
	return strings.Contains(strings.ToLower(event.MatchText()), r.keywordLower)
}

// Engine consumes ingested log events, evaluates every enabled correlation
// rule against each one, and emits correlated alerts. Rules are snapshotted
// and refreshed on an interval (or immediately via ReloadRules after an API
// edit), so evaluation never takes a database read on the hot path.
type Engine struct {
	eventCh    <-chan *core.LogEvent
	eventStore storage.EventStorageInterface
	ruleStore  storage.RuleStorageInterface
	alertStore storage.AlertStorageInterface
	notifier   notify.Notifier
	state      *StateManager

	rules   []compiledRule
	rulesMu sync.RWMutex

	workerCount     int
	refreshInterval time.Duration
	criticalLevel   int

	notifyCtx    context.Context
	notifyCancel context.CancelFunc
	stopCh       chan struct{}
	wg           sync.WaitGroup
	logger       *zap.SugaredLogger
}

// EngineConfig carries the tunables for NewEngine.
type EngineConfig struct {
	WorkerCount     int
	RefreshInterval time.Duration
	// CriticalLevel is the event level at or above which a single event is
	// reported immediately, without any rule firing.
	CriticalLevel int
}

// NewEngine creates a correlation engine reading from eventCh.
func NewEngine(
	eventCh <-chan *core.LogEvent,
	eventStore storage.EventStorageInterface,
	ruleStore storage.RuleStorageInterface,
	alertStore storage.AlertStorageInterface,
	notifier notify.Notifier,
	cfg EngineConfig,
	logger *zap.SugaredLogger,
) *Engine {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.CriticalLevel <= 0 {
		cfg.CriticalLevel = core.CriticalEventLevel
	}

	notifyCtx, notifyCancel := context.WithCancel(context.Background())
	return &Engine{
		eventCh:         eventCh,
		eventStore:      eventStore,
		ruleStore:       ruleStore,
		alertStore:      alertStore,
		notifier:        notifier,
		state:           NewStateManager(logger),
		workerCount:     cfg.WorkerCount,
		refreshInterval: cfg.RefreshInterval,
		criticalLevel:   cfg.CriticalLevel,
		notifyCtx:       notifyCtx,
		notifyCancel:    notifyCancel,
		stopCh:          make(chan struct{}),
		logger:          logger,
	}
}

// Start loads the enabled rules and launches the worker pool and the refresh
// loop.
func (e *Engine) Start() error {
	if err := e.ReloadRules(); err != nil {
		return fmt.Errorf("failed to load correlation rules: %w", err)
	}

	for i := 0; i < e.workerCount; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	e.wg.Add(1)
	go e.refreshLoop()

	e.logger.Infof("Correlation engine started with %d workers, %d rules", e.workerCount, len(e.snapshot()))
	return nil
}

// Stop drains nothing: events still buffered in the channel are dropped.
// Callers stop the ingest side first so the channel is quiet.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	e.notifyCancel()
	e.logger.Info("Correlation engine stopped")
}

// ReloadRules re-reads the enabled rules and swaps the evaluation snapshot.
// Windows of rules whose parameters changed are dropped so buffered partial
// matches never fire under edited thresholds or intervals.
func (e *Engine) ReloadRules() error {
	rules, err := e.ruleStore.GetEnabledRules()
	if err != nil {
		return fmt.Errorf("failed to fetch enabled rules: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		compiled = append(compiled, compiledRule{
			CorrelationRule: r,
			keywordLower:    strings.ToLower(r.Keyword),
		})
	}

	e.rulesMu.Lock()
	old := e.rules
	e.rules = compiled
	e.rulesMu.Unlock()

	prev := make(map[int64]compiledRule, len(old))
	for _, r := range old {
		prev[r.ID] = r
	}
	for _, r := range compiled {
		if p, ok := prev[r.ID]; ok {
			if p.Keyword != r.Keyword || p.Threshold != r.Threshold || p.Interval != r.Interval {
				e.state.DropRule(r.ID)
			}
		}
	}

	e.state.Prune(rules, time.Now().UTC())
	return nil
}

func (e *Engine) snapshot() []compiledRule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	return e.rules
}

func (e *Engine) worker() {
	defer e.wg.Done()
	defer goroutine.Recover("correlation-worker", e.logger)

	for {
		select {
		case <-e.stopCh:
			return
		case event, ok := <-e.eventCh:
			if !ok {
				return
			}
			e.Process(event)
		}
	}
}

func (e *Engine) refreshLoop() {
	defer e.wg.Done()
	defer goroutine.Recover("rule-refresh", e.logger)

	ticker := time.NewTicker(e.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			if err := e.ReloadRules(); err != nil {
				e.logger.Errorw("Failed to refresh correlation rules", "error", err)
			}
		}
	}
}

// Process evaluates one event against every enabled rule. Events arriving
// without an ID are persisted first; events stored by the API layer pass
// through untouched.
func (e *Engine) Process(event *core.LogEvent) {
	timer := time.Now()
	defer func() {
		metrics.EventProcessingDuration.Observe(time.Since(timer).Seconds())
	}()

	if event.ID == 0 {
		if err := e.eventStore.CreateEvent(event); err != nil {
			e.logger.Errorw("Failed to persist log event", "alert_id", event.AlertID, "error", err)
			metrics.EventsDropped.WithLabelValues("storage").Inc()
			return
		}
	}

	if event.Level >= e.criticalLevel {
		e.notifyAsync(func(ctx context.Context) error {
			return e.notifier.NotifyCriticalEvent(ctx, event)
		}, "critical event", event.AlertID)
	}

	rules := e.snapshot()
	for i := range rules {
		rule := &rules[i]
		if !rule.matches(event) {
			continue
		}
		fired, related := e.state.Observe(&rule.CorrelationRule, event)
		if !fired {
			continue
		}
		e.emitAlert(&rule.CorrelationRule, event, related)
	}
}

// emitAlert persists a correlated alert and dispatches notifications
// asynchronously. A notification failure never unwinds the stored alert.
func (e *Engine) emitAlert(rule *core.CorrelationRule, event *core.LogEvent, related []string) {
	alert := &core.CorrelatedAlert{
		CorrelationType: rule.RuleName,
		RelatedAlerts:   related,
		Severity:        rule.Severity,
		AgentID:         event.Agent,
		CorrelationNotes: fmt.Sprintf("%d events matching %q within %s",
			len(related), rule.Keyword, rule.Interval),
		Timestamp: event.Timestamp,
	}

	if err := e.alertStore.CreateAlert(alert); err != nil {
		e.logger.Errorw("Failed to persist correlated alert",
			"rule", rule.RuleName, "agent", event.Agent, "error", err)
		return
	}

	metrics.AlertsCorrelated.WithLabelValues(string(alert.Severity)).Inc()
	e.logger.Infow("Correlated alert emitted",
		"rule", rule.RuleName,
		"agent", event.Agent,
		"severity", alert.Severity,
		"related_events", len(related))

	e.notifyAsync(func(ctx context.Context) error {
		return e.notifier.NotifyAlert(ctx, alert)
	}, "correlated alert", alert.CorrelationType)
}

func (e *Engine) notifyAsync(send func(context.Context) error, kind, subject string) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer goroutine.Recover("notify-dispatch", e.logger)

		ctx, cancel := context.WithTimeout(e.notifyCtx, core.NotifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			e.logger.Errorw("Notification dispatch failed", "kind", kind, "subject", subject, "error", err)
		}
	}()
}
