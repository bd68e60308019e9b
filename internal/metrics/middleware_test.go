package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	counter := func(route, code string) float64 {
		return testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, route, code))
	}
	beforeStats := counter("/v1/stats", "503")
	beforeHealth := counter("/healthz", "200")
	beforeMissing := counter("unmatched", "404")

	for _, path := range []string{"/v1/stats", "/healthz", "/healthz", "/nope"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.InDelta(t, beforeStats+1, counter("/v1/stats", "503"), 0.001)
	require.InDelta(t, beforeHealth+2, counter("/healthz", "200"), 0.001)
	require.InDelta(t, beforeMissing+1, counter("unmatched", "404"), 0.001)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}
