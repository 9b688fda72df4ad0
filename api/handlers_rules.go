package api

import (
	"errors"
	"net/http"
	"time"

	"aegis/core"
	"aegis/storage"
)

// ruleRequest is the write body for correlation rules. The interval comes in
// as seconds to keep the wire format language-neutral.
type ruleRequest struct {
	RuleName        string        `json:"rule_name"`
	Keyword         string        `json:"keyword"`
	Threshold       int           `json:"threshold"`
	IntervalSeconds int           `json:"interval_seconds"`
	Severity        core.Severity `json:"severity"`
	Description     string        `json:"description"`
	Enabled         *bool         `json:"enabled"`
}

func (req *ruleRequest) toRule() *core.CorrelationRule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &core.CorrelationRule{
		RuleName:    req.RuleName,
		Keyword:     req.Keyword,
		Threshold:   req.Threshold,
		Interval:    time.Duration(req.IntervalSeconds) * time.Second,
		Severity:    req.Severity,
		Description: req.Description,
		Enabled:     enabled,
	}
}

// reloadEngine refreshes the engine snapshot after a rule write. A refresh
// failure is logged, not surfaced: the edit is committed and the periodic
// refresh will pick it up.
func (a *API) reloadEngine() {
	if a.reloader == nil {
		return
	}
	if err := a.reloader.ReloadRules(); err != nil {
		a.logger.Errorw("Failed to reload correlation rules", "error", err)
	}
}

// getRules handles GET /api/correlation-rules
func (a *API) getRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.rules.GetRules(queryInt(r, "limit", core.DefaultSearchLimit), queryInt(r, "offset", 0))
	if err != nil {
		a.writeError(w, err, "Failed to list correlation rules")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// getRule handles GET /api/correlation-rules/{id}
func (a *API) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	rule, err := a.rules.GetRule(id)
	if errors.Is(err, storage.ErrRuleNotFound) {
		a.writeError(w, &core.NotFoundError{Resource: "correlation rule", ID: formatID(id)}, "")
		return
	}
	if err != nil {
		a.writeError(w, err, "Failed to get correlation rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// createRule handles POST /api/correlation-rules
func (a *API) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	rule := req.toRule()
	if err := rule.Validate(); err != nil {
		a.writeError(w, err, "")
		return
	}

	if err := a.rules.CreateRule(rule); err != nil {
		a.writeError(w, err, "Failed to create correlation rule")
		return
	}
	a.reloadEngine()

	a.logger.Infow("Correlation rule created", "rule_id", rule.ID, "rule_name", rule.RuleName)
	writeJSON(w, http.StatusCreated, rule)
}

// updateRule handles PUT /api/correlation-rules/{id}
func (a *API) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	var req ruleRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		a.writeError(w, err, "")
		return
	}

	rule := req.toRule()
	if err := rule.Validate(); err != nil {
		a.writeError(w, err, "")
		return
	}

	err = a.rules.UpdateRule(id, rule)
	if errors.Is(err, storage.ErrRuleNotFound) {
		a.writeError(w, &core.NotFoundError{Resource: "correlation rule", ID: formatID(id)}, "")
		return
	}
	if err != nil {
		a.writeError(w, err, "Failed to update correlation rule")
		return
	}
	a.reloadEngine()

	a.logger.Infow("Correlation rule updated", "rule_id", id)
	writeJSON(w, http.StatusOK, rule)
}

// deleteRule handles DELETE /api/correlation-rules/{id}
func (a *API) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, err, "")
		return
	}

	err = a.rules.DeleteRule(id)
	if errors.Is(err, storage.ErrRuleNotFound) {
		a.writeError(w, &core.NotFoundError{Resource: "correlation rule", ID: formatID(id)}, "")
		return
	}
	if err != nil {
		a.writeError(w, err, "Failed to delete correlation rule")
		return
	}
	a.reloadEngine()

	a.logger.Infow("Correlation rule deleted", "rule_id", id)
	writeJSON(w, http.StatusNoContent, nil)
}
