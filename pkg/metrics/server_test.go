package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerRoutesWithoutRegistry(t *testing.T) {
	if IsEnabled() {
		t.Skip("registry already initialized in this process")
	}

	srv := NewServer(ServerConfig{Port: 0})
	assert.Equal(t, 9090, srv.Port())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNoopChatMetrics(t *testing.T) {
	m := NewNoopChatMetrics()
	assert.NotPanics(t, func() {
		m.RecordConnectionAccepted()
		m.RecordBroadcast(3)
		m.RecordCommand("/help")
		m.SetActiveSessions(1)
	})
}
