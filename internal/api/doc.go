// Package api hosts the monitoring HTTP server that runs alongside a crawl.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/stats for the live run summary.
package api
