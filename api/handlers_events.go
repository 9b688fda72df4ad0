package api

import (
	"net/http"
	"time"

	"aegis/core"
	"aegis/metrics"
	"aegis/storage"
)

// ingestRequest is the POST /api/logs body.
type ingestRequest struct {
	AlertID     string `json:"alert_id"`
	Level       int    `json:"level"`
	Agent       string `json:"agent"`
	Description string `json:"description"`
	RuleID      string `json:"rule_id"`
	Location    string `json:"location"`
	FullLog     string `json:"full_log"`
	Timestamp   string `json:"timestamp"`
}

// ingestLog stores one event and evaluates it against the correlation rules
// before responding, so a client that posts a threshold-crossing event can
// read the resulting alert immediately.
func (a *API) ingestLog(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "Failed to decode log event")
		return
	}

	if req.Agent == "" {
		a.writeError(w, core.NewValidationError("agent", "must not be empty"), "")
		return
	}
	if req.Level < 0 {
		a.writeError(w, core.NewValidationError("level", "must not be negative"), "")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			a.writeError(w, core.NewValidationError("timestamp", "must be RFC 3339"), "")
			return
		}
		ts = parsed.UTC()
	}

	event := &core.LogEvent{
		AlertID:     req.AlertID,
		Level:       req.Level,
		Agent:       req.Agent,
		Description: req.Description,
		RuleID:      req.RuleID,
		Location:    req.Location,
		FullLog:     req.FullLog,
		Timestamp:   ts,
	}

	if err := a.events.CreateEvent(event); err != nil {
		a.writeError(w, err, "Failed to store log event")
		return
	}
	metrics.EventsIngested.WithLabelValues("http").Inc()

	if a.ingestor != nil {
		a.ingestor.Process(event)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": event.ID})
}

// searchLogs handles GET /api/logs/search
func (a *API) searchLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := &storage.EventFilters{
		Keyword:  q.Get("q"),
		Agent:    q.Get("agent"),
		MinLevel: queryInt(r, "min_level", 0),
		Limit:    queryInt(r, "limit", core.DefaultSearchLimit),
		Offset:   queryInt(r, "offset", 0),
	}
	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			a.writeError(w, core.NewValidationError("since", "must be RFC 3339"), "")
			return
		}
		filters.Since = ts
	}
	if until := q.Get("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			a.writeError(w, core.NewValidationError("until", "must be RFC 3339"), "")
			return
		}
		filters.Until = ts
	}

	events, total, err := a.events.SearchEvents(filters)
	if err != nil {
		a.writeError(w, err, "Failed to search log events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// getAlerts handles GET /api/correlated-alerts
func (a *API) getAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", core.DefaultSearchLimit)
	offset := queryInt(r, "offset", 0)

	alerts, err := a.alerts.GetAlerts(limit, offset)
	if err != nil {
		a.writeError(w, err, "Failed to list correlated alerts")
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

// healthCheck handles GET /api/health
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
