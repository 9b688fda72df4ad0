package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"aegis/core"
	"aegis/metrics"
	"aegis/notify"
	"aegis/storage"

	"go.uber.org/zap"
)

// Service implements the incident ticket workflow: create, assign, close,
// reopen, and client notification. Transitions are serialized per ticket so
// two analysts acting on the same ticket cannot interleave a read-check-write.
type Service struct {
	tickets  storage.TicketStorageInterface
	notifier notify.Notifier
	logger   *zap.SugaredLogger

	locks   map[int64]*sync.Mutex
	locksMu sync.Mutex
}

// NewService creates a ticket service.
func NewService(tickets storage.TicketStorageInterface, notifier notify.Notifier, logger *zap.SugaredLogger) *Service {
	return &Service{
		tickets:  tickets,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// lock returns the mutex serializing transitions for one ticket. Mutexes are
// small and tickets bounded, so entries are never evicted.
func (s *Service) lock(ticketID int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[ticketID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[ticketID] = mu
	}
	return mu
}

// wrapNotFound converts the storage sentinel into the service error taxonomy.
func wrapNotFound(err error, id int64) error {
	if errors.Is(err, storage.ErrTicketNotFound) {
		return &core.NotFoundError{Resource: "ticket", ID: fmt.Sprintf("%d", id)}
	}
	return err
}

// Create opens a new ticket for an alert. Severity must be valid and a
// well-formed client email is required, since both the explicit client
// notification and the closure notification are sent to it. An initial
// assignee may be recorded at creation, but the ticket still starts in
// status new; the in_progress transition happens only through Assign.
func (s *Service) Create(alertID string, severity core.Severity, clientEmail, notes, assignedTo string) (*core.Ticket, error) {
	if strings.TrimSpace(alertID) == "" {
		return nil, core.NewValidationError("alert_id", "must not be empty")
	}
	if !core.ValidSeverity(severity) {
		return nil, core.NewValidationError("severity", fmt.Sprintf("unknown severity %q", severity))
	}
	if strings.TrimSpace(clientEmail) == "" {
		return nil, core.NewValidationError("client_email", "must not be empty")
	}
	if err := core.ValidateEmail(clientEmail); err != nil {
		return nil, err
	}
	if assignedTo != "" {
		if err := core.ValidateEmail(assignedTo); err != nil {
			return nil, err
		}
	}

	ticket := &core.Ticket{
		AlertID:     alertID,
		Status:      core.TicketStatusNew,
		Severity:    severity,
		AssignedTo:  assignedTo,
		ClientEmail: clientEmail,
		Notes:       notes,
	}
	if err := s.tickets.CreateTicket(ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	metrics.TicketTransitions.WithLabelValues("create").Inc()
	s.logger.Infow("Ticket created", "ticket_id", ticket.ID, "alert_id", alertID, "severity", severity)
	return ticket, nil
}

// Assign puts a ticket in the hands of an analyst. A new ticket moves to
// in_progress; tickets already in progress or resolved keep their status and
// only the assignee changes.
func (s *Service) Assign(id int64, analystEmail string) (*core.Ticket, error) {
	if strings.TrimSpace(analystEmail) == "" {
		return nil, core.NewValidationError("assigned_to", "must not be empty")
	}
	if err := core.ValidateEmail(analystEmail); err != nil {
		return nil, err
	}

	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	ticket, err := s.tickets.GetTicket(id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}

	history := make([]core.TicketHistory, 0, 2)
	if ticket.AssignedTo != analystEmail {
		history = append(history, core.TicketHistory{
			FieldChanged: "assigned_to",
			OldValue:     ticket.AssignedTo,
			NewValue:     analystEmail,
			ChangedBy:    analystEmail,
		})
		ticket.AssignedTo = analystEmail
	}
	if ticket.Status == core.TicketStatusNew {
		history = append(history, core.TicketHistory{
			FieldChanged: "status",
			OldValue:     string(core.TicketStatusNew),
			NewValue:     string(core.TicketStatusInProgress),
			ChangedBy:    analystEmail,
		})
		ticket.Status = core.TicketStatusInProgress
	}

	if len(history) == 0 {
		// Re-assigning to the current assignee changes nothing, but a
		// retried assign still gets its notification.
		s.notifyAssignee(ticket)
		return ticket, nil
	}

	if err := s.tickets.UpdateTicketWithHistory(ticket, history); err != nil {
		return nil, wrapNotFound(err, id)
	}

	metrics.TicketTransitions.WithLabelValues("assign").Inc()
	s.logger.Infow("Ticket assigned", "ticket_id", id, "assigned_to", analystEmail, "status", ticket.Status)
	s.notifyAssignee(ticket)
	return ticket, nil
}

// notifyAssignee tells the analyst a ticket landed on their queue. Best
// effort; a failure is logged and never affects the committed transition.
func (s *Service) notifyAssignee(ticket *core.Ticket) {
	ctx, cancel := context.WithTimeout(context.Background(), core.NotifyTimeout)
	defer cancel()

	subject := fmt.Sprintf("Security incident ticket #%d assigned to you", ticket.ID)
	body := fmt.Sprintf(
		"Ticket #%d (alert %s), severity %s, is now assigned to you.\r\n",
		ticket.ID, ticket.AlertID, ticket.Severity,
	)
	if err := s.notifier.NotifyTicketEvent(ctx, ticket, ticket.AssignedTo, subject, body); err != nil {
		s.logger.Errorw("Failed to notify assignee", "ticket_id", ticket.ID, "error", err)
	}
}

// Close resolves a ticket and appends a dated closure block to its notes.
// Only new and in_progress tickets can close; closing a resolved ticket is a
// state conflict.
func (s *Service) Close(id int64, notes, closedBy string) (*core.Ticket, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	ticket, err := s.tickets.GetTicket(id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}

	if ticket.Status == core.TicketStatusResolved {
		return nil, &core.StateConflictError{
			Entity: "ticket",
			ID:     id,
			Reason: "already resolved",
		}
	}

	oldStatus := ticket.Status
	oldNotes := ticket.Notes
	block := fmt.Sprintf("[Closed %s]", time.Now().UTC().Format("2006-01-02 15:04 MST"))
	if strings.TrimSpace(notes) != "" {
		block += " " + strings.TrimSpace(notes)
	}
	if ticket.Notes != "" {
		ticket.Notes += "\n" + block
	} else {
		ticket.Notes = block
	}
	ticket.Status = core.TicketStatusResolved

	history := []core.TicketHistory{
		{
			FieldChanged: "status",
			OldValue:     string(oldStatus),
			NewValue:     string(core.TicketStatusResolved),
			ChangedBy:    closedBy,
		},
		{
			FieldChanged: "notes",
			OldValue:     oldNotes,
			NewValue:     ticket.Notes,
			ChangedBy:    closedBy,
		},
	}
	if err := s.tickets.UpdateTicketWithHistory(ticket, history); err != nil {
		return nil, wrapNotFound(err, id)
	}

	metrics.TicketTransitions.WithLabelValues("close").Inc()
	s.logger.Infow("Ticket closed", "ticket_id", id, "closed_by", closedBy)
	s.notifyClosure(ticket)
	return ticket, nil
}

// notifyClosure tells the client their incident was resolved. Best effort,
// after the transition is committed.
func (s *Service) notifyClosure(ticket *core.Ticket) {
	if ticket.ClientEmail == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), core.NotifyTimeout)
	defer cancel()

	subject := fmt.Sprintf("Security incident ticket #%d resolved", ticket.ID)
	body := fmt.Sprintf(
		"Ticket #%d (alert %s) has been resolved.\r\n\r\n%s\r\n",
		ticket.ID, ticket.AlertID, ticket.Notes,
	)
	if err := s.notifier.NotifyTicketEvent(ctx, ticket, ticket.ClientEmail, subject, body); err != nil {
		s.logger.Errorw("Failed to notify client of closure", "ticket_id", ticket.ID, "error", err)
	}
}

// Reopen moves a resolved ticket back to new. The assignee is kept so the
// original analyst can pick the case back up, but the workflow restarts from
// the beginning.
func (s *Service) Reopen(id int64, reopenedBy string) (*core.Ticket, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	ticket, err := s.tickets.GetTicket(id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}

	if ticket.Status != core.TicketStatusResolved {
		return nil, &core.StateConflictError{
			Entity: "ticket",
			ID:     id,
			Reason: fmt.Sprintf("cannot reopen ticket in status %q", ticket.Status),
		}
	}

	ticket.Status = core.TicketStatusNew
	history := []core.TicketHistory{{
		FieldChanged: "status",
		OldValue:     string(core.TicketStatusResolved),
		NewValue:     string(core.TicketStatusNew),
		ChangedBy:    reopenedBy,
	}}
	if err := s.tickets.UpdateTicketWithHistory(ticket, history); err != nil {
		return nil, wrapNotFound(err, id)
	}

	metrics.TicketTransitions.WithLabelValues("reopen").Inc()
	s.logger.Infow("Ticket reopened", "ticket_id", id, "reopened_by", reopenedBy)
	return ticket, nil
}

// NotifyClient emails the ticket's client a status update. The call is a pure
// side effect: it changes no ticket state, so repeating it just sends another
// email. A dispatch failure surfaces as a DependencyError and never touches
// the ticket.
func (s *Service) NotifyClient(ctx context.Context, id int64) (*core.Ticket, error) {
	ticket, err := s.tickets.GetTicket(id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}

	if ticket.ClientEmail == "" {
		return nil, core.NewValidationError("client_email", "ticket has no client email")
	}

	subject := fmt.Sprintf("Security incident ticket #%d: %s", ticket.ID, ticket.Status)
	body := fmt.Sprintf(
		"Ticket #%d (alert %s) is currently %s, severity %s.\r\n",
		ticket.ID, ticket.AlertID, ticket.Status, ticket.Severity,
	)
	if ticket.Notes != "" {
		body += "\r\n" + ticket.Notes + "\r\n"
	}

	ctx, cancel := context.WithTimeout(ctx, core.NotifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyTicketEvent(ctx, ticket, ticket.ClientEmail, subject, body); err != nil {
		return nil, &core.DependencyError{
			Dependency: "email",
			Err:        err,
		}
	}

	metrics.TicketTransitions.WithLabelValues("notify_client").Inc()
	s.logger.Infow("Client notified", "ticket_id", id, "recipient", ticket.ClientEmail)
	return ticket, nil
}

// Get retrieves a ticket by ID.
func (s *Service) Get(id int64) (*core.Ticket, error) {
	ticket, err := s.tickets.GetTicket(id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	return ticket, nil
}

// Search retrieves tickets matching the filters.
func (s *Service) Search(filters *storage.TicketFilters) ([]core.Ticket, int64, error) {
	return s.tickets.SearchTickets(filters)
}

// History retrieves the audit trail for a ticket.
func (s *Service) History(id int64) ([]core.TicketHistory, error) {
	if _, err := s.tickets.GetTicket(id); err != nil {
		return nil, wrapNotFound(err, id)
	}
	return s.tickets.GetTicketHistory(id)
}
