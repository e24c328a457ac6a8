// Package testutil provides common test utilities for handler and integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boxoffice/pkg/platform/httputil"
)

// NewJSONRequest creates a request carrying a raw JSON body.
func NewJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DoRequest executes a request against a handler and returns the recorder.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// DecodeJSON decodes the response body into T, failing the test on error.
func DecodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), "failed to decode response")
	return out
}

// AssertError checks the status and the error envelope written by
// httputil.Responder. An empty reason asserts that none was sent.
func AssertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code, reason string) {
	t.Helper()
	require.Equal(t, status, rr.Code, "unexpected status code")
	body := DecodeJSON[httputil.ErrorBody](t, rr)
	assert.Equal(t, code, body.Code, "unexpected error code")
	assert.Equal(t, reason, body.Reason, "unexpected reason")
}
