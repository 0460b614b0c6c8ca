// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs/latest and /v1/runs/{run_id}/pages for audit results.
//   - POST /v1/monitor/check for an on-demand monitoring pass.
package api
