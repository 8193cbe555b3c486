// Package testutil holds HTTP test helpers shared by handler, middleware
// and server tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// AssertStatusCode fails with the body attached when the status differs.
func AssertStatusCode(t testing.TB, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Fatalf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// AssertJSONError checks status, content type and the {"error": ...} body.
func AssertJSONError(t testing.TB, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	AssertStatusCode(t, rr, status)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected application/json, got %q", ct)
	}
	body := DecodeJSON[map[string]string](t, rr.Body.Bytes())
	if body["error"] != message {
		t.Fatalf("expected error %q, got %q", message, body["error"])
	}
}

// DecodeJSON unmarshals body into a T or fails the test.
func DecodeJSON[T any](t testing.TB, body []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", string(body), err)
	}
	return out
}

// NewJSONRequest builds a request whose body is data encoded as JSON.
func NewJSONRequest(t testing.TB, method, path string, data interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if data != nil {
		if err := json.NewEncoder(&buf).Encode(data); err != nil {
			t.Fatalf("failed to encode JSON: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// FixedClock returns a now func that always reports at.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
