package api

import (
	"net/http"
)

// getSeverityDistribution handles GET /api/dashboard/severity
func (a *API) getSeverityDistribution(w http.ResponseWriter, r *http.Request) {
	counts, err := a.reporter.SeverityDistribution()
	if err != nil {
		a.writeError(w, err, "Failed to compute severity distribution")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// getTimeline handles GET /api/dashboard/timeline
func (a *API) getTimeline(w http.ResponseWriter, r *http.Request) {
	buckets, err := a.reporter.Timeline()
	if err != nil {
		a.writeError(w, err, "Failed to compute event timeline")
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// getTicketStatusDistribution handles GET /api/dashboard/ticket-status
func (a *API) getTicketStatusDistribution(w http.ResponseWriter, r *http.Request) {
	counts, err := a.reporter.StatusDistribution()
	if err != nil {
		a.writeError(w, err, "Failed to compute ticket status distribution")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
