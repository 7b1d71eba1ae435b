package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snapbuy/snapbuy/pkg/logger"
)

func TestLogger_PassesResponseThrough(t *testing.T) {
	cases := map[string]struct {
		method string
		path   string
		status int
		body   string
	}{
		"run listing":   {http.MethodGet, "/api/v1/runs", http.StatusOK, `{"items":[]}`},
		"run submitted": {http.MethodPost, "/api/v1/runs", http.StatusCreated, `{"run_id":"abc"}`},
		"unknown run":   {http.MethodGet, "/api/v1/runs/nope", http.StatusNotFound, `{"error":"not found"}`},
	}

	log := logger.New(&logger.Config{Level: logger.InfoLevel, Format: "json", Output: "stdout"})

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			rec := httptest.NewRecorder()
			Logger(log)(inner).ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d", rec.Code, tc.status)
			}
			if rec.Body.String() != tc.body {
				t.Errorf("body = %q, want %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestResponseWriter_TracksSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	rw.Write([]byte("hello "))
	rw.Write([]byte("world"))

	if rw.statusCode != http.StatusAccepted {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusAccepted)
	}
	if rw.size != len("hello world") {
		t.Errorf("size = %d, want %d", rw.size, len("hello world"))
	}
}
