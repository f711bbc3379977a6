package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "debug", "json")

	h := middleware.RequestID(Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts/9", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warning", line["level"])
	require.Equal(t, "/api/posts/9", line["path"])
	require.Equal(t, float64(http.StatusNotFound), line["status"])
	require.NotEmpty(t, line["request_id"])
}

func TestNewUnknownLevel(t *testing.T) {
	log := New("loud", "text")
	require.Equal(t, "info", log.GetLevel().String())
}
