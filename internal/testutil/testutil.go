// Package testutil provides shared test helpers for the camera, API and
// database packages.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/depthscan/internal/monitoring"
)

// LoopbackAddr is a client address that passes tsweb's debug access check.
const LoopbackAddr = "127.0.0.1:12345"

// QuietLogs routes the package logger to t.Logf for the duration of the
// test, then mutes it.
func QuietLogs(t testing.TB) {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
}

// DebugRequest builds a request to a /debug/ route from a loopback client.
func DebugRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = LoopbackAddr
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// JSONRequest builds a request with a JSON body; an empty body sends none.
func JSONRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code = %d, want %d (body %q)", rec.Code, want, rec.Body.String())
	}
}
