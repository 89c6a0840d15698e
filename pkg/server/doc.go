// Package server provides the HTTP API for the enforcement service.
//
// Endpoints:
//
//	POST   /v1/enforce                          evaluate an intent
//	POST   /v1/rules                            install an agent's rule set
//	DELETE /v1/agents/{agent_id}/rules          remove all of an agent's rules
//	DELETE /v1/agents/{agent_id}/rules/{rule_id} remove one rule (ownership checked)
//	POST   /v1/refresh                          reload the fast tier from the snapshot
//	GET    /v1/stats                            storage and refresh statistics
//	GET    /healthz                             liveness probe
//	GET    /metrics                             Prometheus metrics (configurable path)
//
// All request and response bodies are JSON. Enforcement never returns a
// transport-level error for a policy decision: a blocked intent is a
// 200 with decision "block".
package server
