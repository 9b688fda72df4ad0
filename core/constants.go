package core

import "time"

const (
	// MaxRuleBufferEvents caps the per-rule sliding-window buffer so a rule
	// with a huge interval cannot exhaust memory. Oldest events are dropped
	// first once the cap is hit.
	MaxRuleBufferEvents = 10000

	// DefaultSearchLimit bounds free-text search results for events and
	// tickets.
	DefaultSearchLimit = 50

	// CriticalEventLevel is the default level at or above which a single
	// event triggers an immediate notification, independent of any rule.
	CriticalEventLevel = 10

	// NotifyTimeout bounds every outbound notification call. Dispatch
	// failures are reported, never allowed to block a committed transition.
	NotifyTimeout = 10 * time.Second
)
