package api

import (
	"errors"
	"net/http"

	"aegis/core"
	"aegis/storage"

	"github.com/gorilla/mux"
)

// analystRequest is the write body for analysts.
type analystRequest struct {
	Level core.AnalystLevel `json:"level"`
	Email string            `json:"email"`
}

func (a *API) analystStorageError(w http.ResponseWriter, err error, id int64, context string) {
	switch {
	case errors.Is(err, storage.ErrAnalystNotFound):
		a.writeError(w, &core.NotFoundError{Resource: "analyst", ID: formatID(id)}, "")
	case errors.Is(err, storage.ErrDuplicateEmail):
		a.writeError(w, core.NewValidationError("email", "already registered"), "")
	default:
		a.writeError(w, err, context)
	}
}

// getAnalysts handles GET /api/analysts
func (a *API) getAnalysts(w http.ResponseWriter, r *http.Request) {
	analysts, err := a.analysts.GetAnalysts()
	if err != nil {
		a.writeError(w, err, "Failed to list analysts")
		return
	}
	writeJSON(w, http.StatusOK, analysts)
}

// getAnalystsByLevel handles GET /api/analysts/by-level/{level}
func (a *API) getAnalystsByLevel(w http.ResponseWriter, r *http.Request) {
	level := core.AnalystLevel(mux.Vars(r)["level"])
	if !core.ValidAnalystLevel(level) {
		a.writeError(w, core.NewValidationError("level", "must be L1, L2, or L3"), "")
		return
	}

	analysts, err := a.analysts.GetAnalystsByLevel(level)
	if err != nil {
		a.writeError(w, err, "Failed to list analysts by level")
		return
	}
	writeJSON(w, http.StatusOK, analysts)
}

// createAnalyst handles POST /api/analysts
func (a *API) createAnalyst(w http.ResponseWriter, r *http.Request) {
	var req analystRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	analyst := &core.Analyst{Level: req.Level, Email: req.Email}
	if err := analyst.Validate(); err != nil {
		a.writeError(w, err, "")
		return
	}

	if err := a.analysts.CreateAnalyst(analyst); err != nil {
		a.analystStorageError(w, err, 0, "Failed to create analyst")
		return
	}

	a.logger.Infow("Analyst registered", "analyst_id", analyst.ID, "level", analyst.Level)
	writeJSON(w, http.StatusCreated, analyst)
}

// updateAnalyst handles PUT /api/analysts/{id}
func (a *API) updateAnalyst(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	var req analystRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	analyst := &core.Analyst{Level: req.Level, Email: req.Email}
	if err := analyst.Validate(); err != nil {
		a.writeError(w, err, "")
		return
	}

	if err := a.analysts.UpdateAnalyst(id, analyst); err != nil {
		a.analystStorageError(w, err, id, "Failed to update analyst")
		return
	}
	writeJSON(w, http.StatusOK, analyst)
}

// deleteAnalyst handles DELETE /api/analysts/{id}
func (a *API) deleteAnalyst(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	if err := a.analysts.DeleteAnalyst(id); err != nil {
		a.analystStorageError(w, err, id, "Failed to delete analyst")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
