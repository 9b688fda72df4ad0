package api

import (
	"fmt"
	"net/http"
	"testing"

	"aegis/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAnalyst(t *testing.T) {
	ta := setupTestAPI(t, nil)

	w := ta.do(t, "POST", "/api/analysts", map[string]interface{}{
		"level": "L2",
		"email": "analyst@example.com",
	})
	requireStatus(t, w, http.StatusCreated)

	var created core.Analyst
	decode(t, w, &created)
	assert.Greater(t, created.ID, int64(0))
	assert.Equal(t, core.AnalystL2, created.Level)
}

func TestCreateAnalyst_Validation(t *testing.T) {
	ta := setupTestAPI(t, nil)

	w := ta.do(t, "POST", "/api/analysts", map[string]interface{}{
		"level": "L9",
		"email": "analyst@example.com",
	})
	requireStatus(t, w, http.StatusBadRequest)

	w = ta.do(t, "POST", "/api/analysts", map[string]interface{}{
		"level": "L1",
		"email": "not-an-email",
	})
	requireStatus(t, w, http.StatusBadRequest)
}

func TestCreateAnalyst_DuplicateEmail(t *testing.T) {
	ta := setupTestAPI(t, nil)
	ta.seedAnalyst(t, core.AnalystL1, "analyst@example.com")

	w := ta.do(t, "POST", "/api/analysts", map[string]interface{}{
		"level": "L3",
		"email": "analyst@example.com",
	})
	requireStatus(t, w, http.StatusBadRequest)
	assert.Contains(t, w.Body.String(), "already registered")
}

func TestGetAnalystsByLevel(t *testing.T) {
	ta := setupTestAPI(t, nil)
	ta.seedAnalyst(t, core.AnalystL1, "one@example.com")
	ta.seedAnalyst(t, core.AnalystL1, "two@example.com")
	ta.seedAnalyst(t, core.AnalystL3, "three@example.com")

	w := ta.do(t, "GET", "/api/analysts/by-level/L1", nil)
	requireStatus(t, w, http.StatusOK)
	var analysts []core.Analyst
	decode(t, w, &analysts)
	assert.Len(t, analysts, 2)

	w = ta.do(t, "GET", "/api/analysts", nil)
	requireStatus(t, w, http.StatusOK)
	decode(t, w, &analysts)
	assert.Len(t, analysts, 3)

	w = ta.do(t, "GET", "/api/analysts/by-level/senior", nil)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestUpdateAnalyst(t *testing.T) {
	ta := setupTestAPI(t, nil)
	analyst := ta.seedAnalyst(t, core.AnalystL1, "analyst@example.com")

	w := ta.do(t, "PUT", fmt.Sprintf("/api/analysts/%d", analyst.ID), map[string]interface{}{
		"level": "L2",
		"email": "analyst@example.com",
	})
	requireStatus(t, w, http.StatusOK)

	updated, err := ta.analysts.GetAnalyst(analyst.ID)
	require.NoError(t, err)
	assert.Equal(t, core.AnalystL2, updated.Level)
}

func TestDeleteAnalyst(t *testing.T) {
	ta := setupTestAPI(t, nil)
	analyst := ta.seedAnalyst(t, core.AnalystL1, "analyst@example.com")

	w := ta.do(t, "DELETE", fmt.Sprintf("/api/analysts/%d", analyst.ID), nil)
	requireStatus(t, w, http.StatusNoContent)

	w = ta.do(t, "DELETE", fmt.Sprintf("/api/analysts/%d", analyst.ID), nil)
	requireStatus(t, w, http.StatusNotFound)
}
