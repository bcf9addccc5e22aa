package report

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonwraymond/toolcontext/cache"
)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// CoverageHandler returns an HTTP handler that serves the coverage
// report as JSON. The manifest function is called per request so the
// required set can change at runtime.
func CoverageHandler(rep *Reporter, manifest func() []cache.Key) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		report, err := rep.Coverage(ctx, manifest())
		if err != nil {
			http.Error(w, "coverage pass failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if len(report.Missing) > 0 || len(report.Unavailable) > 0 {
			// Incomplete coverage is not an outage, but probes and
			// pre-flight checks want a non-200 signal.
			w.WriteHeader(http.StatusConflict)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}
