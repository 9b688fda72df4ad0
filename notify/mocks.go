package notify

import (
	"context"
	"sync"

	"aegis/core"
)

// MockNotifier records every notification instead of sending it. Safe for
// concurrent use.
type MockNotifier struct {
	mu             sync.Mutex
	Alerts         []*core.CorrelatedAlert
	CriticalEvents []*core.LogEvent
	TicketEvents   []MockTicketEvent

	// FailNext makes the next call return this error, then clears it.
	FailNext error
}

// MockTicketEvent captures one NotifyTicketEvent call.
type MockTicketEvent struct {
	TicketID  int64
	Recipient string
	Subject   string
	Body      string
}

// NewMockNotifier creates an empty recorder.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *MockNotifier) NotifyAlert(_ context.Context, alert *core.CorrelatedAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.Alerts = append(m.Alerts, alert)
	return nil
}

func (m *MockNotifier) NotifyCriticalEvent(_ context.Context, event *core.LogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.CriticalEvents = append(m.CriticalEvents, event)
	return nil
}

func (m *MockNotifier) NotifyTicketEvent(_ context.Context, ticket *core.Ticket, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.TicketEvents = append(m.TicketEvents, MockTicketEvent{
		TicketID:  ticket.ID,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}

// AlertCount returns the number of recorded alert notifications.
func (m *MockNotifier) AlertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}

// TicketEventCount returns the number of recorded ticket notifications.
func (m *MockNotifier) TicketEventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TicketEvents)
}

// CriticalEventCount returns the number of recorded critical event
// notifications.
func (m *MockNotifier) CriticalEventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CriticalEvents)
}
