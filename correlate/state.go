package correlate

import (
	"sync"
	"time"

	"aegis/core"

	"go.uber.org/zap"
)

// StateManager tracks the sliding-window buffer of matching events for each
// correlation rule. Buffers are keyed by rule ID and guarded per rule, so
// concurrent workers evaluating different rules never contend.
type StateManager struct {
	states  map[int64]*ruleState
	stateMu sync.RWMutex
	logger  *zap.SugaredLogger
}

// ruleState holds the matched events for one rule, newest last.
type ruleState struct {
	mu     sync.Mutex
	events []*core.LogEvent
}

// NewStateManager creates an empty state manager.
func NewStateManager(logger *zap.SugaredLogger) *StateManager {
	return &StateManager{
		states: make(map[int64]*ruleState),
		logger: logger,
	}
}

func (sm *StateManager) entry(ruleID int64) *ruleState {
	sm.stateMu.RLock()
	entry, ok := sm.states[ruleID]
	sm.stateMu.RUnlock()
	if ok {
		return entry
	}

	sm.stateMu.Lock()
	defer sm.stateMu.Unlock()
	if entry, ok = sm.states[ruleID]; ok {
		return entry
	}
	entry = &ruleState{}
	sm.states[ruleID] = entry
	return entry
}

// Observe records a matching event against a rule's window and reports whether
// the rule fired. When it fires, the returned slice holds the alert IDs of
// every event in the window, oldest first, and the window resets so the same
// events never contribute to two alerts.
//
// The window is anchored on event time, not wall clock: an event keeps every
// buffered event whose timestamp lies within rule.Interval before its own.
// Replayed or backfilled logs correlate the same way live ones do.
func (sm *StateManager) Observe(rule *core.CorrelationRule, event *core.LogEvent) (bool, []string) {
	entry := sm.entry(rule.ID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	cutoff := event.Timestamp.Add(-rule.Interval)
	events := entry.events
	start := 0
	for start < len(events) && events[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		events = events[start:]
	}

	// Cap the buffer so a rule with a huge interval cannot grow unbounded.
	if len(events) >= core.MaxRuleBufferEvents {
		dropped := len(events) - core.MaxRuleBufferEvents + 1
		events = events[dropped:]
		sm.logger.Warnf("Rule %d window at capacity, dropped %d oldest events", rule.ID, dropped)
	}

	events = append(events, event)

	if len(events) < rule.Threshold {
		entry.events = events
		return false, nil
	}

	related := make([]string, 0, len(events))
	for _, e := range events {
		related = append(related, e.AlertID)
	}
	entry.events = nil
	return true, related
}

// WindowSize returns the number of buffered events for a rule. Test hook.
func (sm *StateManager) WindowSize(ruleID int64) int {
	sm.stateMu.RLock()
	entry, ok := sm.states[ruleID]
	sm.stateMu.RUnlock()
	if !ok {
		return 0
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.events)
}

// DropRule discards the buffered window for a rule. Called when a rule is
// edited or deleted so stale partial matches never fire under new parameters.
func (sm *StateManager) DropRule(ruleID int64) {
	sm.stateMu.Lock()
	defer sm.stateMu.Unlock()
	delete(sm.states, ruleID)
}

// Reset clears all buffered windows.
func (sm *StateManager) Reset() {
	sm.stateMu.Lock()
	defer sm.stateMu.Unlock()
	sm.states = make(map[int64]*ruleState)
}

// Prune drops events older than each rule's interval relative to now, and
// removes empty buffers. Called periodically so rules that stop matching do
// not pin memory.
func (sm *StateManager) Prune(rules []core.CorrelationRule, now time.Time) {
	intervals := make(map[int64]time.Duration, len(rules))
	for _, r := range rules {
		intervals[r.ID] = r.Interval
	}

	sm.stateMu.Lock()
	defer sm.stateMu.Unlock()

	for id, entry := range sm.states {
		interval, ok := intervals[id]
		if !ok {
			// Rule no longer exists or is disabled.
			delete(sm.states, id)
			continue
		}

		entry.mu.Lock()
		cutoff := now.Add(-interval)
		events := entry.events
		start := 0
		for start < len(events) && events[start].Timestamp.Before(cutoff) {
			start++
		}
		if start > 0 {
			entry.events = events[start:]
		}
		empty := len(entry.events) == 0
		entry.mu.Unlock()

		if empty {
			delete(sm.states, id)
		}
	}
}
