package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })
	return &buf
}

func TestAccessLog_EmitsOwnerID(t *testing.T) {
	buf := captureLog(t)

	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/analyses", nil)
	req = req.WithContext(context.WithValue(req.Context(), OwnerIDKey, "owner-123"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := strings.TrimSpace(buf.String())
	start := strings.Index(line, "{")
	require.GreaterOrEqual(t, start, 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line[start:]), &entry))

	assert.Equal(t, "owner-123", entry["owner_id"])
	assert.NotContains(t, entry, "org_id")
	assert.Equal(t, "/analyses", entry["path"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

func TestAccessLog_OmitsOwnerIDWhenUnauthenticated(t *testing.T) {
	buf := captureLog(t)

	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	line := strings.TrimSpace(buf.String())
	start := strings.Index(line, "{")
	require.GreaterOrEqual(t, start, 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line[start:]), &entry))
	assert.NotContains(t, entry, "owner_id")
}
