package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateRoutesUsePatch(t *testing.T) {
	r := NewServer(nil, nil, nil, []string{"*"}).Router()

	// Malformed bodies stop at binding, proving the PATCH routes are wired
	// without touching storage.
	for _, path := range []string{"/api/agents/agent_1", "/api/testcases/tc_1"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, path, strings.NewReader("{bad")))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, path, strings.NewReader("{}")))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}
