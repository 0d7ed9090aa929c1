package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/billing-webhooks/pkg/logger"
)

func noContent(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

func TestRequestIDEchoesValidHeader(t *testing.T) {
	h := RequestID(logger.Nop())(http.HandlerFunc(noContent))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))
}

func TestRequestIDReplacesMissingOrUnsafeHeader(t *testing.T) {
	h := RequestID(logger.Nop())(http.HandlerFunc(noContent))

	for _, incoming := range []string{"", "has space", strings.Repeat("a", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set(requestIDHeader, incoming)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(requestIDHeader)
		assert.NotEmpty(t, got)
		assert.NotEqual(t, incoming, got)
	}
}

func TestRecovererWritesInternalErrorEnvelope(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "handler exploded")
}

func TestRecovererReraisesAbort(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                 `"level":"info"`,
		http.StatusConflict:           `"level":"warn"`,
		http.StatusServiceUnavailable: `"level":"error"`,
	}
	for status, level := range cases {
		var buf bytes.Buffer
		logg := logger.New(logger.Options{ServiceName: "api-test", Output: &buf})
		h := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil))

		out := buf.String()
		assert.Contains(t, out, level, "status %d", status)
		assert.Contains(t, out, `"path":"/api/v1/webhooks/stripe"`)
	}
}
