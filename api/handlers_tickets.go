package api

import (
	"net/http"

	"aegis/core"
	"aegis/storage"
)

// createTicketRequest is the POST /api/tickets/create body.
type createTicketRequest struct {
	AlertID     string        `json:"alert_id"`
	Severity    core.Severity `json:"severity"`
	ClientEmail string        `json:"client_email"`
	Notes       string        `json:"notes"`
	AssignedTo  string        `json:"assigned_to"`
}

// createTicket handles POST /api/tickets/create
func (a *API) createTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	ticket, err := a.tickets.Create(req.AlertID, req.Severity, req.ClientEmail, req.Notes, req.AssignedTo)
	if err != nil {
		a.writeError(w, err, "Failed to create ticket")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"ticket_id": ticket.ID})
}

// getTicket handles GET /api/tickets/{id}
func (a *API) getTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	ticket, err := a.tickets.Get(id)
	if err != nil {
		a.writeError(w, err, "Failed to get ticket")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// getTicketHistory handles GET /api/tickets/{id}/history
func (a *API) getTicketHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	history, err := a.tickets.History(id)
	if err != nil {
		a.writeError(w, err, "Failed to get ticket history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// searchTickets handles GET /api/tickets/search
func (a *API) searchTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := &storage.TicketFilters{
		Status:     core.TicketStatus(q.Get("status")),
		Severity:   core.Severity(q.Get("severity")),
		AssignedTo: q.Get("assigned_to"),
		AlertID:    q.Get("alert_id"),
		Keyword:    q.Get("q"),
		Limit:      queryInt(r, "limit", core.DefaultSearchLimit),
		Offset:     queryInt(r, "offset", 0),
	}
	if filters.Status != "" && !core.ValidTicketStatus(filters.Status) {
		a.writeError(w, core.NewValidationError("status", "unknown ticket status"), "")
		return
	}
	if filters.Severity != "" && !core.ValidSeverity(filters.Severity) {
		a.writeError(w, core.NewValidationError("severity", "unknown severity"), "")
		return
	}

	tickets, total, err := a.tickets.Search(filters)
	if err != nil {
		a.writeError(w, err, "Failed to search tickets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tickets": tickets,
		"total":   total,
	})
}

// assignRequest is the POST /api/tickets/{id}/assign body.
type assignRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// assignTicket handles POST /api/tickets/{id}/assign
func (a *API) assignTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	var req assignRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	ticket, err := a.tickets.Assign(id, req.AssignedTo)
	if err != nil {
		a.writeError(w, err, "Failed to assign ticket")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// closeRequest is the POST /api/tickets/{id}/close body.
type closeRequest struct {
	Notes    string `json:"notes"`
	ClosedBy string `json:"closed_by"`
}

// closeTicket handles POST /api/tickets/{id}/close
func (a *API) closeTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	var req closeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	ticket, err := a.tickets.Close(id, req.Notes, req.ClosedBy)
	if err != nil {
		a.writeError(w, err, "Failed to close ticket")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// reopenRequest is the POST /api/tickets/{id}/reopen body.
type reopenRequest struct {
	ReopenedBy string `json:"reopened_by"`
}

// reopenTicket handles POST /api/tickets/{id}/reopen
func (a *API) reopenTicket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	var req reopenRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, &req); err != nil {
			a.writeError(w, err, "")
			return
		}
	}

	ticket, err := a.tickets.Reopen(id, req.ReopenedBy)
	if err != nil {
		a.writeError(w, err, "Failed to reopen ticket")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// emailClient handles POST /api/tickets/{id}/email-client
func (a *API) emailClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	ticket, err := a.tickets.NotifyClient(r.Context(), id)
	if err != nil {
		a.writeError(w, err, "Failed to notify client")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ticket_id": ticket.ID,
		"notified":  true,
	})
}
