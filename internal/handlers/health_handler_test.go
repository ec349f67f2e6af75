package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"task-tracker/backend/testutil"
)

func TestHealthHandler(t *testing.T) {
	env := testutil.SetupTestRouter(t)

	w := testutil.DoJSON(t, env.Router, http.MethodGet, "/health/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	testutil.DecodeJSON(t, w, &response)
	assert.Equal(t, map[string]string{"status": "ok", "database": "ok"}, response)

	env.DB.SetErr(errors.New("dial tcp: connection refused"))
	w = testutil.DoJSON(t, env.Router, http.MethodGet, "/health/", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	response = nil
	testutil.DecodeJSON(t, w, &response)
	assert.Equal(t, "error", response["status"])
	assert.Equal(t, "error", response["database"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}
